package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expoferia/expoferia-api/internal/models"
)

func newReportRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func projectReportColumns() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "description", "registered_at",
		"period_id", "period_name", "period_start", "period_end",
		"subject_id", "subject_name", "subject_code",
	})
}

func TestReportRepositoryListProjectsUnfiltered(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := projectReportColumns().
		AddRow("pr1", "Solar Car", "", time.Now(), "pe1", "2026-1", time.Now(), time.Now(), "s1", "Physics", "PHY-101")
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY pe.start_date DESC, p.name ASC")).
		WillReturnRows(rows)

	result, err := repo.ListProjects(context.Background(), models.ProjectReportFilter{})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Solar Car", result[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListProjectsStudentFilterJoinsParticipants(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN participants pa ON pa.id = pp.participant_id") +
		"(?s).*" + regexp.QuoteMeta("pa.id = $1 AND pa.type = 'STUDENT'")).
		WithArgs("pa9").
		WillReturnRows(projectReportColumns())

	result, err := repo.ListProjects(context.Background(), models.ProjectReportFilter{StudentID: "pa9"})
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListProjectsCombinedPredicates(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("p.period_id = $1 AND p.subject_id = $2 AND pa.id = $3 AND pa.type = 'TEACHER'")).
		WithArgs("pe1", "s1", "pa5").
		WillReturnRows(projectReportColumns())

	_, err := repo.ListProjects(context.Background(), models.ProjectReportFilter{
		PeriodID:  "pe1",
		SubjectID: "s1",
		TeacherID: "pa5",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryProjectRoster(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := sqlmock.NewRows([]string{"id", "type", "first_name", "last_name", "national_id", "email", "phone", "major", "created_at", "updated_at"}).
		AddRow("pa1", "STUDENT", "Ana", "Diaz", "V-100", nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE pp.project_id = $1")).
		WithArgs("pr1").
		WillReturnRows(rows)

	roster, err := repo.ProjectRoster(context.Background(), "pr1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListParticipantsAggregatesProjects(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := sqlmock.NewRows([]string{"id", "type", "first_name", "last_name", "national_id", "email", "phone", "major", "associated_projects"}).
		AddRow("pa1", "STUDENT", "Ana", "Diaz", "V-100", nil, nil, nil, "Robot Arm; Solar Car")
	mock.ExpectQuery(regexp.QuoteMeta("string_agg(DISTINCT p.name, '; ' ORDER BY p.name) AS associated_projects")).
		WillReturnRows(rows)

	result, err := repo.ListParticipants(context.Background(), models.ParticipantReportFilter{})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Robot Arm; Solar Car", result[0].AssociatedProjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListParticipantsTypePredicate(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	studentType := models.ParticipantStudent
	mock.ExpectQuery(regexp.QuoteMeta("p.period_id = $1 AND pa.type = $2")).
		WithArgs("pe1", studentType).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "first_name", "last_name", "national_id", "email", "phone", "major", "associated_projects"}))

	result, err := repo.ListParticipants(context.Background(), models.ParticipantReportFilter{
		PeriodID: "pe1",
		Type:     &studentType,
	})
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
