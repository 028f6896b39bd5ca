package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildrock/crm-api/internal/models"
	"github.com/wildrock/crm-api/internal/schema"
)

func TestProgramRepositoryFindTypeByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	created := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "name", "slug", "description", "field_schema", "created_at"}).
		AddRow("type-1", "Field Trip", "field-trip", nil,
			[]byte(`{"fields":[{"key":"children_count","label":"Children","type":"number"}],"aggregations":["children_count"]}`), created)

	mock.ExpectQuery(regexp.QuoteMeta("FROM program_types WHERE id = $1")).
		WithArgs("type-1").
		WillReturnRows(rows)

	pt, err := repo.FindTypeByID(context.Background(), "type-1")
	require.NoError(t, err)
	assert.Equal(t, "field-trip", pt.Slug)
	require.Len(t, pt.FieldSchema.Fields, 1)
	assert.Equal(t, schema.TypeNumber, pt.FieldSchema.Fields[0].Type)
	assert.Equal(t, []string{"children_count"}, pt.FieldSchema.Aggregations)
}

func TestProgramRepositoryListEntriesWithBounds(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "program_type_id", "date", "contact_id", "entity_id", "data", "notes",
		"created_at", "updated_at", "contact_name", "entity_name",
	}).AddRow(
		"entry-1", "type-2", date, nil, nil, []byte(`{"amount":100.5}`), nil,
		date, date, nil, nil,
	)

	from := date
	to := date.AddDate(0, 1, 0)
	mock.ExpectQuery(regexp.QuoteMeta("FROM program_entries e")).
		WithArgs("type-2", from, to).
		WillReturnRows(rows)

	entries, err := repo.ListEntries(context.Background(), "type-2", &from, &to)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 100.5, entries[0].Data["amount"])
}

func TestProgramRepositoryDeleteEntryMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM program_entries WHERE id = $1")).
		WithArgs("entry-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteEntry(context.Background(), "entry-404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestProgramRepositoryCreateEntryAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProgramRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO program_entries")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.ProgramEntry{
		ProgramTypeID: "type-2",
		Date:          time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Data:          schema.FieldValues{"amount": 49.5},
	}
	require.NoError(t, repo.CreateEntry(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.UpdatedAt.IsZero())
}
