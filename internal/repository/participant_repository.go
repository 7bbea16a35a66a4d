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

const participantColumns = "id, type, first_name, last_name, national_id, email, phone, major, created_at, updated_at"

// ParticipantRepository handles persistence for students and teachers.
type ParticipantRepository struct {
	db *sqlx.DB
}

// NewParticipantRepository instantiates a participant repository.
func NewParticipantRepository(db *sqlx.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// List returns participants matching provided filters.
func (r *ParticipantRepository) List(ctx context.Context, filter models.ParticipantFilter) ([]models.Participant, int, error) {
	base := "FROM participants WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR national_id ILIKE $%d)", len(args)+1, len(args)+2, len(args)+3))
		like := "%" + filter.Search + "%"
		args = append(args, like, like, like)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"first_name":  true,
		"last_name":   true,
		"national_id": true,
		"type":        true,
		"created_at":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "last_name"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", participantColumns, base, sortBy, order, size, offset)

	var participants []models.Participant
	if err := r.db.SelectContext(ctx, &participants, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list participants: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count participants: %w", err)
	}

	return participants, total, nil
}

// FindByID loads a participant by identifier.
func (r *ParticipantRepository) FindByID(ctx context.Context, id string) (*models.Participant, error) {
	query := fmt.Sprintf("SELECT %s FROM participants WHERE id = $1", participantColumns)
	var participant models.Participant
	if err := r.db.GetContext(ctx, &participant, query, id); err != nil {
		return nil, err
	}
	return &participant, nil
}

// ExistsByNationalID checks if another participant already holds the national ID.
func (r *ParticipantRepository) ExistsByNationalID(ctx context.Context, nationalID, excludeID string) (bool, error) {
	return r.exists(ctx, "national_id", nationalID, excludeID)
}

// ExistsByEmail checks if another participant already uses the email address.
func (r *ParticipantRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return r.exists(ctx, "email", email, excludeID)
}

func (r *ParticipantRepository) exists(ctx context.Context, column, value, excludeID string) (bool, error) {
	base := fmt.Sprintf("SELECT 1 FROM participants WHERE %s = $1", column)
	args := []interface{}{value}
	if excludeID != "" {
		base += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check participant uniqueness: %w", err)
	}
	return true, nil
}

// ExistingIDs returns which of the provided participant IDs exist.
func (r *ParticipantRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT id FROM participants WHERE id IN (%s)", strings.Join(placeholders, ", "))
	var found []string
	if err := r.db.SelectContext(ctx, &found, query, args...); err != nil {
		return nil, fmt.Errorf("check participant ids: %w", err)
	}
	return found, nil
}

// ListWithEmail returns all participants with a usable email address.
func (r *ParticipantRepository) ListWithEmail(ctx context.Context) ([]models.Participant, error) {
	query := fmt.Sprintf("SELECT %s FROM participants WHERE email IS NOT NULL AND email <> '' ORDER BY last_name ASC, first_name ASC", participantColumns)
	var participants []models.Participant
	if err := r.db.SelectContext(ctx, &participants, query); err != nil {
		return nil, fmt.Errorf("list participants with email: %w", err)
	}
	return participants, nil
}

// Create inserts a new participant record.
func (r *ParticipantRepository) Create(ctx context.Context, participant *models.Participant) error {
	if participant.ID == "" {
		participant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = now
	}
	participant.UpdatedAt = now

	const query = `INSERT INTO participants (id, type, first_name, last_name, national_id, email, phone, major, created_at, updated_at) VALUES (:id, :type, :first_name, :last_name, :national_id, :email, :phone, :major, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, participant); err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

// Update modifies an existing participant.
func (r *ParticipantRepository) Update(ctx context.Context, participant *models.Participant) error {
	participant.UpdatedAt = time.Now().UTC()
	const query = `UPDATE participants SET type = :type, first_name = :first_name, last_name = :last_name, national_id = :national_id, email = :email, phone = :phone, major = :major, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, participant); err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	return nil
}

// Delete removes a participant permanently.
func (r *ParticipantRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}

// CountProjects returns the number of projects the participant is linked to.
func (r *ParticipantRepository) CountProjects(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM project_participants WHERE participant_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count participant projects: %w", err)
	}
	return count, nil
}
