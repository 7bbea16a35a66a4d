package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/expoferia/expoferia-api/internal/models"
)

// ReportRepository runs the filtered aggregation queries behind the
// reporting endpoints.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository instantiates a report repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// ListProjects returns the projects matching the report filter, newest
// period first. When an identity filter is present the participant join
// can multiply rows, hence the DISTINCT projection.
func (r *ReportRepository) ListProjects(ctx context.Context, filter models.ProjectReportFilter) ([]models.ProjectReportRow, error) {
	base := `FROM projects p
JOIN periods pe ON p.period_id = pe.id
JOIN subjects s ON p.subject_id = s.id`
	if filter.NeedsParticipantJoin() {
		base += `
JOIN project_participants pp ON pp.project_id = p.id
JOIN participants pa ON pa.id = pp.participant_id`
	}
	base += `
WHERE 1=1`

	var conditions []string
	var args []interface{}

	if filter.PeriodID != "" {
		conditions = append(conditions, fmt.Sprintf("p.period_id = $%d", len(args)+1))
		args = append(args, filter.PeriodID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("p.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("pa.id = $%d AND pa.type = 'STUDENT'", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("pa.id = $%d AND pa.type = 'TEACHER'", len(args)+1))
		args = append(args, filter.TeacherID)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT DISTINCT p.id, p.name, p.description, p.registered_at,
pe.id AS period_id, pe.name AS period_name, pe.start_date AS period_start, pe.end_date AS period_end,
s.id AS subject_id, s.name AS subject_name, s.code AS subject_code
%s
ORDER BY pe.start_date DESC, p.name ASC`, base)

	var rows []models.ProjectReportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("project report query: %w", err)
	}
	return rows, nil
}

// ProjectRoster loads the full participant roster for one report row.
// The roster is never narrowed by the report's identity filters.
func (r *ReportRepository) ProjectRoster(ctx context.Context, projectID string) ([]models.Participant, error) {
	const query = `SELECT pa.id, pa.type, pa.first_name, pa.last_name, pa.national_id, pa.email, pa.phone, pa.major, pa.created_at, pa.updated_at
FROM participants pa
JOIN project_participants pp ON pa.id = pp.participant_id
WHERE pp.project_id = $1
ORDER BY pa.type ASC, pa.last_name ASC, pa.first_name ASC`
	var roster []models.Participant
	if err := r.db.SelectContext(ctx, &roster, query, projectID); err != nil {
		return nil, fmt.Errorf("project report roster: %w", err)
	}
	return roster, nil
}

// ListParticipants returns participants together with the aggregated
// names of their projects. The inner join excludes participants with no
// project association at all.
func (r *ReportRepository) ListParticipants(ctx context.Context, filter models.ParticipantReportFilter) ([]models.ParticipantReportRow, error) {
	base := `FROM participants pa
JOIN project_participants pp ON pp.participant_id = pa.id
JOIN projects p ON p.id = pp.project_id
WHERE 1=1`

	var conditions []string
	var args []interface{}

	if filter.PeriodID != "" {
		conditions = append(conditions, fmt.Sprintf("p.period_id = $%d", len(args)+1))
		args = append(args, filter.PeriodID)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("pa.type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT pa.id, pa.type, pa.first_name, pa.last_name, pa.national_id, pa.email, pa.phone, pa.major,
string_agg(DISTINCT p.name, '; ' ORDER BY p.name) AS associated_projects
%s
GROUP BY pa.id, pa.type, pa.first_name, pa.last_name, pa.national_id, pa.email, pa.phone, pa.major
ORDER BY pa.type ASC, pa.last_name ASC, pa.first_name ASC`, base)

	var rows []models.ParticipantReportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("participant report query: %w", err)
	}
	return rows, nil
}
