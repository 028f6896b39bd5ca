package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildrock/crm-api/internal/models"
)

func testTime() time.Time {
	return time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
}

func TestEntityRepositoryAddMemberDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contact_entity_roles")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.AddMember(context.Background(), &models.ContactEntityRole{
		ContactID:          "contact-1",
		EntityID:           "entity-1",
		RelationshipTypeID: "rel-1",
	})
	assert.ErrorIs(t, err, ErrDuplicateMember)
}

func TestEntityRepositoryFindDefaultRelationshipType(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntityRepository(db)

	rows := sqlmock.NewRows([]string{"id", "entity_type", "name", "is_default", "created_at"}).
		AddRow("rel-1", "household", "Member", true, testTime())

	mock.ExpectQuery(regexp.QuoteMeta("is_default = TRUE")).
		WithArgs(models.EntityHousehold).
		WillReturnRows(rows)

	rt, err := repo.FindDefaultRelationshipType(context.Background(), models.EntityHousehold)
	require.NoError(t, err)
	assert.Equal(t, "Member", rt.Name)
	assert.True(t, rt.IsDefault)
}

func TestEntityRepositoryDeleteRemovesMembers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM contact_entity_roles WHERE entity_id = $1")).
		WithArgs("entity-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM entities WHERE id = $1")).
		WithArgs("entity-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "entity-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
