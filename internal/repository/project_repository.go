package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/expoferia/expoferia-api/internal/models"
)

// ProjectRepository handles persistence for projects and their
// participant associations.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository instantiates a project repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// List returns project summaries matching provided filters.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectSummary, int, error) {
	base := `FROM projects p
JOIN periods pe ON p.period_id = pe.id
JOIN subjects s ON p.subject_id = s.id
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
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("p.name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.period_id, p.subject_id, p.name, p.description, p.registered_at, p.updated_at,
pe.name AS period_name, s.name AS subject_name %s ORDER BY p.registered_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var projects []models.ProjectSummary
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	return projects, total, nil
}

// FindByID loads a project with joined period/subject context and its
// complete participant roster.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.ProjectDetail, error) {
	const query = `SELECT p.id, p.period_id, p.subject_id, p.name, p.description, p.registered_at, p.updated_at,
pe.name AS period_name, pe.start_date AS period_start, pe.end_date AS period_end,
s.name AS subject_name, s.code AS subject_code
FROM projects p
JOIN periods pe ON p.period_id = pe.id
JOIN subjects s ON p.subject_id = s.id
WHERE p.id = $1`
	var detail models.ProjectDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}

	roster, err := r.Roster(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Participants = roster
	return &detail, nil
}

// Exists reports whether the project row is present.
func (r *ProjectRepository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	if err := r.db.GetContext(ctx, &one, `SELECT 1 FROM projects WHERE id = $1 LIMIT 1`, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check project existence: %w", err)
	}
	return true, nil
}

// ExistsByName checks case-insensitively if another project uses the name.
func (r *ProjectRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	base := "SELECT 1 FROM projects WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID != "" {
		base += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check project uniqueness: %w", err)
	}
	return true, nil
}

// Roster returns every participant linked to the project, students first,
// then sorted by last and first name.
func (r *ProjectRepository) Roster(ctx context.Context, projectID string) ([]models.Participant, error) {
	const query = `SELECT pa.id, pa.type, pa.first_name, pa.last_name, pa.national_id, pa.email, pa.phone, pa.major, pa.created_at, pa.updated_at
FROM participants pa
JOIN project_participants pp ON pa.id = pp.participant_id
WHERE pp.project_id = $1
ORDER BY pa.type ASC, pa.last_name ASC, pa.first_name ASC`
	var roster []models.Participant
	if err := r.db.SelectContext(ctx, &roster, query, projectID); err != nil {
		return nil, fmt.Errorf("load project roster: %w", err)
	}
	return roster, nil
}

// ParticipantIDs returns the IDs currently associated with the project.
func (r *ProjectRepository) ParticipantIDs(ctx context.Context, projectID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT participant_id FROM project_participants WHERE project_id = $1 ORDER BY participant_id ASC`, projectID); err != nil {
		return nil, fmt.Errorf("load project participant ids: %w", err)
	}
	return ids, nil
}

// Create inserts the project and its initial associations in one transaction.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project, participantIDs []string) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if project.RegisteredAt.IsZero() {
		project.RegisteredAt = now
	}
	project.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create project tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO projects (id, period_id, subject_id, name, description, registered_at, updated_at) VALUES (:id, :period_id, :subject_id, :name, :description, :registered_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	if err = insertAssociations(ctx, tx, project.ID, participantIDs); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create project tx: %w", err)
	}
	return nil
}

// Update modifies the project base fields and, in the same transaction,
// applies the participant additions and removals. A failure in any phase
// rolls back the whole edit.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project, toAdd, toRemove []string) error {
	project.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update project tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const update = `UPDATE projects SET period_id = :period_id, subject_id = :subject_id, name = :name, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, update, project); err != nil {
		return fmt.Errorf("update project: %w", err)
	}

	if err = insertAssociations(ctx, tx, project.ID, toAdd); err != nil {
		return err
	}
	if err = deleteAssociations(ctx, tx, project.ID, toRemove); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update project tx: %w", err)
	}
	return nil
}

// ReconcileParticipants applies the association additions and removals in
// one transaction. A failure in either phase rolls back both, leaving the
// stored set as it was.
func (r *ProjectRepository) ReconcileParticipants(ctx context.Context, projectID string, toAdd, toRemove []string) error {
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reconcile participants tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertAssociations(ctx, tx, projectID, toAdd); err != nil {
		return err
	}
	if err = deleteAssociations(ctx, tx, projectID, toRemove); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reconcile participants tx: %w", err)
	}
	return nil
}

// AddParticipants links the given participants to the project. Already
// existing associations are skipped, so the operation is idempotent.
func (r *ProjectRepository) AddParticipants(ctx context.Context, projectID string, participantIDs []string) error {
	if len(participantIDs) == 0 {
		return nil
	}
	return insertAssociations(ctx, r.db, projectID, participantIDs)
}

// RemoveParticipants unlinks the given participants in one batch statement.
func (r *ProjectRepository) RemoveParticipants(ctx context.Context, projectID string, participantIDs []string) error {
	if len(participantIDs) == 0 {
		return nil
	}
	return deleteAssociations(ctx, r.db, projectID, participantIDs)
}

// Delete removes a project; association rows cascade at the schema level.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertAssociations(ctx context.Context, e execer, projectID string, participantIDs []string) error {
	if len(participantIDs) == 0 {
		return nil
	}
	tuples := make([]string, len(participantIDs))
	args := make([]interface{}, 0, len(participantIDs)+1)
	args = append(args, projectID)
	for i, id := range participantIDs {
		tuples[i] = fmt.Sprintf("($1, $%d)", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf("INSERT INTO project_participants (project_id, participant_id) VALUES %s ON CONFLICT DO NOTHING", strings.Join(tuples, ", "))
	if _, err := e.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("add project participants: %w", err)
	}
	return nil
}

func deleteAssociations(ctx context.Context, e execer, projectID string, participantIDs []string) error {
	if len(participantIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(participantIDs))
	args := make([]interface{}, 0, len(participantIDs)+1)
	args = append(args, projectID)
	for i, id := range participantIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf("DELETE FROM project_participants WHERE project_id = $1 AND participant_id IN (%s)", strings.Join(placeholders, ", "))
	if _, err := e.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove project participants: %w", err)
	}
	return nil
}
