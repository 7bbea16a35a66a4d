package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/expoferia/expoferia-api/internal/models"
	"github.com/expoferia/expoferia-api/pkg/database"
	appErrors "github.com/expoferia/expoferia-api/pkg/errors"
)

type participantRepository interface {
	List(ctx context.Context, filter models.ParticipantFilter) ([]models.Participant, int, error)
	FindByID(ctx context.Context, id string) (*models.Participant, error)
	ExistsByNationalID(ctx context.Context, nationalID, excludeID string) (bool, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, participant *models.Participant) error
	Update(ctx context.Context, participant *models.Participant) error
	Delete(ctx context.Context, id string) error
	CountProjects(ctx context.Context, id string) (int, error)
}

// CreateParticipantRequest describes payload for registering participants.
type CreateParticipantRequest struct {
	Type       models.ParticipantType `json:"type" validate:"required"`
	FirstName  string                 `json:"first_name" validate:"required"`
	LastName   string                 `json:"last_name" validate:"required"`
	NationalID string                 `json:"national_id" validate:"required"`
	Email      *string                `json:"email" validate:"omitempty,email"`
	Phone      *string                `json:"phone"`
	Major      *string                `json:"major"`
}

// UpdateParticipantRequest updates mutable fields on a participant.
type UpdateParticipantRequest struct {
	Type       models.ParticipantType `json:"type" validate:"required"`
	FirstName  string                 `json:"first_name" validate:"required"`
	LastName   string                 `json:"last_name" validate:"required"`
	NationalID string                 `json:"national_id" validate:"required"`
	Email      *string                `json:"email" validate:"omitempty,email"`
	Phone      *string                `json:"phone"`
	Major      *string                `json:"major"`
}

// ParticipantService orchestrates participant workflows.
type ParticipantService struct {
	repo      participantRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewParticipantService creates a new participant service instance.
func NewParticipantService(repo participantRepository, validate *validator.Validate, logger *zap.Logger) *ParticipantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParticipantService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated participants.
func (s *ParticipantService) List(ctx context.Context, filter models.ParticipantFilter) ([]models.Participant, *models.Pagination, error) {
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, nil, appErrors.Validation("type must be STUDENT or TEACHER")
	}

	participants, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participants")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return participants, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a participant by ID.
func (s *ParticipantService) Get(ctx context.Context, id string) (*models.Participant, error) {
	participant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	return participant, nil
}

// Create registers a new participant ensuring national ID and email
// uniqueness. Major is kept only for students.
func (s *ParticipantService) Create(ctx context.Context, req CreateParticipantRequest) (*models.Participant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid participant payload")
	}
	if !req.Type.Valid() {
		return nil, appErrors.Validation("type must be STUDENT or TEACHER")
	}

	if err := s.checkUniqueness(ctx, req.NationalID, req.Email, ""); err != nil {
		return nil, err
	}

	participant := &models.Participant{
		Type:       req.Type,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		NationalID: req.NationalID,
		Email:      req.Email,
		Phone:      req.Phone,
		Major:      req.Major,
	}
	if participant.Type == models.ParticipantTeacher {
		participant.Major = nil
	}

	if err := s.repo.Create(ctx, participant); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "participant with same national ID or email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create participant")
	}
	return participant, nil
}

// Update modifies a participant record.
func (s *ParticipantService) Update(ctx context.Context, id string, req UpdateParticipantRequest) (*models.Participant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid participant payload")
	}
	if !req.Type.Valid() {
		return nil, appErrors.Validation("type must be STUDENT or TEACHER")
	}

	participant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}

	if err := s.checkUniqueness(ctx, req.NationalID, req.Email, id); err != nil {
		return nil, err
	}

	participant.Type = req.Type
	participant.FirstName = req.FirstName
	participant.LastName = req.LastName
	participant.NationalID = req.NationalID
	participant.Email = req.Email
	participant.Phone = req.Phone
	participant.Major = req.Major
	if participant.Type == models.ParticipantTeacher {
		participant.Major = nil
	}

	if err := s.repo.Update(ctx, participant); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "participant with same national ID or email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update participant")
	}
	return participant, nil
}

// Delete removes a participant unless projects still reference them.
func (s *ParticipantService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}

	count, err := s.repo.CountProjects(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check participant dependencies")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrIntegrity, "participant is associated with projects")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if database.IsForeignKeyViolation(err) {
			return appErrors.Clone(appErrors.ErrIntegrity, "participant is associated with projects")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete participant")
	}
	return nil
}

func (s *ParticipantService) checkUniqueness(ctx context.Context, nationalID string, email *string, excludeID string) error {
	exists, err := s.repo.ExistsByNationalID(ctx, nationalID, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check national ID uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "national ID already registered")
	}

	if email != nil && *email != "" {
		exists, err = s.repo.ExistsByEmail(ctx, *email, excludeID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
	}
	return nil
}
