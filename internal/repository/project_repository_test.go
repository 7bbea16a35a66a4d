package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expoferia/expoferia-api/internal/models"
)

func newProjectRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestProjectRepositoryList(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	rows := sqlmock.NewRows([]string{"id", "period_id", "subject_id", "name", "description", "registered_at", "updated_at", "period_name", "subject_name"}).
		AddRow("pr1", "pe1", "s1", "Solar Car", "", time.Now(), time.Now(), "2026-1", "Physics")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT p.id, p.period_id, p.subject_id, p.name, p.description, p.registered_at, p.updated_at")).
		WithArgs("pe1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM projects p")).
		WithArgs("pe1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.ProjectFilter{PeriodID: "pe1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM projects WHERE LOWER(name) = LOWER($1) AND id <> $2 LIMIT 1")).
		WithArgs("Solar Car", "pr1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsByName(context.Background(), "Solar Car", "pr1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryRoster(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	rows := sqlmock.NewRows([]string{"id", "type", "first_name", "last_name", "national_id", "email", "phone", "major", "created_at", "updated_at"}).
		AddRow("pa1", "STUDENT", "Ana", "Diaz", "V-100", nil, nil, nil, time.Now(), time.Now()).
		AddRow("pa2", "TEACHER", "Luis", "Marin", "V-200", nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY pa.type ASC, pa.last_name ASC, pa.first_name ASC")).
		WithArgs("pr1").
		WillReturnRows(rows)

	roster, err := repo.Roster(context.Background(), "pr1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, models.ParticipantStudent, roster[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryCreateInsertsAssociations(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO projects").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_participants (project_id, participant_id) VALUES ($1, $2), ($1, $3) ON CONFLICT DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "pa1", "pa2").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	project := &models.Project{PeriodID: "pe1", SubjectID: "s1", Name: "Solar Car"}
	err := repo.Create(context.Background(), project, []string{"pa1", "pa2"})
	require.NoError(t, err)
	assert.NotEmpty(t, project.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryUpdateAppliesDiffInOneTransaction(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE projects SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_participants (project_id, participant_id) VALUES ($1, $2) ON CONFLICT DO NOTHING")).
		WithArgs("pr1", "pa3").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM project_participants WHERE project_id = $1 AND participant_id IN ($2)")).
		WithArgs("pr1", "pa1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	project := &models.Project{ID: "pr1", PeriodID: "pe1", SubjectID: "s1", Name: "Solar Car"}
	err := repo.Update(context.Background(), project, []string{"pa3"}, []string{"pa1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryUpdateRollsBackOnAssociationFailure(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE projects SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO project_participants").
		WillReturnError(errors.New("constraint violated"))
	mock.ExpectRollback()

	project := &models.Project{ID: "pr1", PeriodID: "pe1", SubjectID: "s1", Name: "Solar Car"}
	err := repo.Update(context.Background(), project, []string{"pa3"}, nil)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryReconcileParticipantsOneTransaction(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_participants (project_id, participant_id) VALUES ($1, $2) ON CONFLICT DO NOTHING")).
		WithArgs("pr1", "pa3").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM project_participants WHERE project_id = $1 AND participant_id IN ($2)")).
		WithArgs("pr1", "pa1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReconcileParticipants(context.Background(), "pr1", []string{"pa3"}, []string{"pa1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryReconcileParticipantsRollsBackOnRemoveFailure(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO project_participants").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM project_participants").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.ReconcileParticipants(context.Background(), "pr1", []string{"pa3"}, []string{"pa1"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryAddParticipantsNoopOnEmpty(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	require.NoError(t, repo.AddParticipants(context.Background(), "pr1", nil))
	require.NoError(t, repo.RemoveParticipants(context.Background(), "pr1", nil))
	require.NoError(t, repo.ReconcileParticipants(context.Background(), "pr1", nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryRemoveParticipantsBatch(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM project_participants WHERE project_id = $1 AND participant_id IN ($2, $3)")).
		WithArgs("pr1", "pa1", "pa2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.RemoveParticipants(context.Background(), "pr1", []string{"pa1", "pa2"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepositoryParticipantIDs(t *testing.T) {
	db, mock, cleanup := newProjectRepoMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT participant_id FROM project_participants WHERE project_id = $1 ORDER BY participant_id ASC")).
		WithArgs("pr1").
		WillReturnRows(sqlmock.NewRows([]string{"participant_id"}).AddRow("pa1").AddRow("pa2"))

	ids, err := repo.ParticipantIDs(context.Background(), "pr1")
	require.NoError(t, err)
	assert.Equal(t, []string{"pa1", "pa2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
