package models

import "time"

// EntityType is the closed set of relationship entity kinds.
type EntityType string

const (
	EntityHousehold    EntityType = "household"
	EntitySchool       EntityType = "school"
	EntityOrganization EntityType = "organization"
)

// Valid reports whether the entity type is known.
func (t EntityType) Valid() bool {
	switch t {
	case EntityHousehold, EntitySchool, EntityOrganization:
		return true
	}
	return false
}

// Entity represents a household, school, or organization contacts can
// belong to.
type Entity struct {
	ID         string     `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	EntityType EntityType `db:"entity_type" json:"entity_type"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`

	// MemberCount is populated on list queries via join.
	MemberCount int `db:"member_count" json:"member_count"`
}

// RelationshipType names the role a contact plays inside an entity,
// unique per entity type.
type RelationshipType struct {
	ID         string     `db:"id" json:"id"`
	EntityType EntityType `db:"entity_type" json:"entity_type"`
	Name       string     `db:"name" json:"name"`
	IsDefault  bool       `db:"is_default" json:"is_default"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// ContactEntityRole links a contact to an entity with a role.
type ContactEntityRole struct {
	ID                 string    `db:"id" json:"id"`
	ContactID          string    `db:"contact_id" json:"contact_id"`
	EntityID           string    `db:"entity_id" json:"entity_id"`
	RelationshipTypeID string    `db:"relationship_type_id" json:"relationship_type_id"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`

	// Display fields populated on member listings via join.
	ContactName      *string `db:"contact_name" json:"contact_name,omitempty"`
	RelationshipName *string `db:"relationship_name" json:"relationship_name,omitempty"`
}

// EntityFilter captures filtering criteria for listing entities.
type EntityFilter struct {
	EntityType EntityType
	Search     string
	Page       int
	PageSize   int
}
