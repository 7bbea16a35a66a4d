package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/expoferia/expoferia-api/internal/models"
	"github.com/expoferia/expoferia-api/pkg/database"
	appErrors "github.com/expoferia/expoferia-api/pkg/errors"
)

type projectRepository interface {
	List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectSummary, int, error)
	FindByID(ctx context.Context, id string) (*models.ProjectDetail, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Roster(ctx context.Context, projectID string) ([]models.Participant, error)
	ParticipantIDs(ctx context.Context, projectID string) ([]string, error)
	Create(ctx context.Context, project *models.Project, participantIDs []string) error
	Update(ctx context.Context, project *models.Project, toAdd, toRemove []string) error
	AddParticipants(ctx context.Context, projectID string, participantIDs []string) error
	RemoveParticipants(ctx context.Context, projectID string, participantIDs []string) error
	ReconcileParticipants(ctx context.Context, projectID string, toAdd, toRemove []string) error
	Delete(ctx context.Context, id string) error
}

type projectPeriodRepository interface {
	FindByID(ctx context.Context, id string) (*models.Period, error)
}

type projectSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type projectParticipantRepository interface {
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
}

type reportCacheInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// CreateProjectRequest describes payload for registering projects.
type CreateProjectRequest struct {
	PeriodID       string   `json:"period_id" validate:"required"`
	SubjectID      string   `json:"subject_id" validate:"required"`
	Name           string   `json:"name" validate:"required"`
	Description    string   `json:"description"`
	ParticipantIDs []string `json:"participant_ids"`
}

// UpdateProjectRequest updates a project and, when ParticipantIDs is
// present, reconciles the association set against it in the same edit.
type UpdateProjectRequest struct {
	PeriodID       string    `json:"period_id" validate:"required"`
	SubjectID      string    `json:"subject_id" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	Description    string    `json:"description"`
	ParticipantIDs *[]string `json:"participant_ids"`
}

// ModifyParticipantsRequest carries participant IDs for incremental
// association changes.
type ModifyParticipantsRequest struct {
	ParticipantIDs []string `json:"participant_ids" validate:"required,min=1"`
}

// ProjectService orchestrates project workflows including participant
// association management.
type ProjectService struct {
	repo         projectRepository
	periods      projectPeriodRepository
	subjects     projectSubjectRepository
	participants projectParticipantRepository
	reports      reportCacheInvalidator
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewProjectService creates a new project service instance.
func NewProjectService(
	repo projectRepository,
	periods projectPeriodRepository,
	subjects projectSubjectRepository,
	participants projectParticipantRepository,
	validate *validator.Validate,
	logger *zap.Logger,
) *ProjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{
		repo:         repo,
		periods:      periods,
		subjects:     subjects,
		participants: participants,
		validator:    validate,
		logger:       logger,
	}
}

// SetReportCache registers the report cache to drop after writes. Projects
// and their associations feed the cached reports.
func (s *ProjectService) SetReportCache(reports reportCacheInvalidator) {
	s.reports = reports
}

func (s *ProjectService) invalidateReports(ctx context.Context) {
	if s.reports != nil {
		s.reports.InvalidateCache(ctx)
	}
}

// List returns paginated project summaries.
func (s *ProjectService) List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectSummary, *models.Pagination, error) {
	projects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	return projects, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a project with joined context and its full roster.
func (s *ProjectService) Get(ctx context.Context, id string) (*models.ProjectDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return detail, nil
}

// Create registers a project with its initial participant set. Duplicate
// IDs in the request collapse to a single association.
func (s *ProjectService) Create(ctx context.Context, req CreateProjectRequest) (*models.ProjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}

	if err := s.checkReferences(ctx, req.PeriodID, req.SubjectID); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check project uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "project name already exists")
	}

	participantIDs := dedupeIDs(req.ParticipantIDs)
	if err := s.checkParticipants(ctx, participantIDs); err != nil {
		return nil, err
	}

	project := &models.Project{
		PeriodID:    req.PeriodID,
		SubjectID:   req.SubjectID,
		Name:        req.Name,
		Description: req.Description,
	}

	if err := s.repo.Create(ctx, project, participantIDs); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "project name already exists")
		}
		if database.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrReferential, "referenced period, subject or participant does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}

	s.invalidateReports(ctx)
	return s.Get(ctx, project.ID)
}

// Update modifies a project. When the request carries a participant set,
// the stored associations are reconciled against it inside the same
// transaction as the base update, so a failed edit leaves both untouched.
func (s *ProjectService) Update(ctx context.Context, id string, req UpdateProjectRequest) (*models.ProjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	if err := s.checkReferences(ctx, req.PeriodID, req.SubjectID); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check project uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "project name already exists")
	}

	var toAdd, toRemove []string
	if req.ParticipantIDs != nil {
		target := dedupeIDs(*req.ParticipantIDs)
		if err := s.checkParticipants(ctx, target); err != nil {
			return nil, err
		}
		current, err := s.repo.ParticipantIDs(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current associations")
		}
		toAdd, toRemove = diffParticipantSets(current, target)
	}

	project := &models.Project{
		ID:           id,
		PeriodID:     req.PeriodID,
		SubjectID:    req.SubjectID,
		Name:         req.Name,
		Description:  req.Description,
		RegisteredAt: detail.RegisteredAt,
	}

	if err := s.repo.Update(ctx, project, toAdd, toRemove); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "project name already exists")
		}
		if database.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrReferential, "referenced period, subject or participant does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project")
	}

	s.invalidateReports(ctx)
	return s.Get(ctx, id)
}

// AddParticipants links participants to a project. Associations that
// already exist are skipped, so repeating a request changes nothing.
func (s *ProjectService) AddParticipants(ctx context.Context, projectID string, req ModifyParticipantsRequest) (*models.ParticipantDiff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid participant payload")
	}

	current, err := s.loadAssociations(ctx, projectID)
	if err != nil {
		return nil, err
	}

	target := dedupeIDs(req.ParticipantIDs)
	if err := s.checkParticipants(ctx, target); err != nil {
		return nil, err
	}

	currentSet := make(map[string]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	var added []string
	for _, id := range target {
		if _, ok := currentSet[id]; !ok {
			added = append(added, id)
		}
	}
	sort.Strings(added)

	if err := s.repo.AddParticipants(ctx, projectID, target); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrReferential, "referenced participant does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add participants")
	}

	if len(added) > 0 {
		s.invalidateReports(ctx)
	}
	return &models.ParticipantDiff{Added: added, Removed: []string{}}, nil
}

// RemoveParticipants unlinks participants from a project in one batch.
// IDs without an existing association are ignored.
func (s *ProjectService) RemoveParticipants(ctx context.Context, projectID string, req ModifyParticipantsRequest) (*models.ParticipantDiff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid participant payload")
	}

	current, err := s.loadAssociations(ctx, projectID)
	if err != nil {
		return nil, err
	}

	currentSet := make(map[string]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	var removed []string
	for _, id := range dedupeIDs(req.ParticipantIDs) {
		if _, ok := currentSet[id]; ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)

	if len(removed) > 0 {
		if err := s.repo.RemoveParticipants(ctx, projectID, removed); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove participants")
		}
		s.invalidateReports(ctx)
	}

	return &models.ParticipantDiff{Added: []string{}, Removed: removed}, nil
}

// ReplaceParticipants reconciles the project's association set against the
// target set. Missing associations are added and surplus ones removed in a
// single transaction, so a failed replace leaves the stored set intact.
// Shared members are untouched.
func (s *ProjectService) ReplaceParticipants(ctx context.Context, projectID string, target []string) (*models.ParticipantDiff, error) {
	current, err := s.loadAssociations(ctx, projectID)
	if err != nil {
		return nil, err
	}

	targetIDs := dedupeIDs(target)
	if err := s.checkParticipants(ctx, targetIDs); err != nil {
		return nil, err
	}

	toAdd, toRemove := diffParticipantSets(current, targetIDs)
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return &models.ParticipantDiff{Added: []string{}, Removed: []string{}}, nil
	}

	if err := s.repo.ReconcileParticipants(ctx, projectID, toAdd, toRemove); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrReferential, "referenced participant does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace participants")
	}

	s.invalidateReports(ctx)
	return &models.ParticipantDiff{Added: toAdd, Removed: toRemove}, nil
}

// Roster returns the project's participants, students first.
func (s *ProjectService) Roster(ctx context.Context, projectID string) ([]models.Participant, error) {
	if _, err := s.loadAssociations(ctx, projectID); err != nil {
		return nil, err
	}
	roster, err := s.repo.Roster(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return roster, nil
}

// Delete removes a project together with its association rows.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete project")
	}
	s.invalidateReports(ctx)
	return nil
}

func (s *ProjectService) loadAssociations(ctx context.Context, projectID string) ([]string, error) {
	if _, err := s.repo.FindByID(ctx, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	ids, err := s.repo.ParticipantIDs(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current associations")
	}
	return ids, nil
}

func (s *ProjectService) checkReferences(ctx context.Context, periodID, subjectID string) error {
	if _, err := s.periods.FindByID(ctx, periodID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Referential("period", periodID)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify period")
	}
	if _, err := s.subjects.FindByID(ctx, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Referential("subject", subjectID)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify subject")
	}
	return nil
}

func (s *ProjectService) checkParticipants(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	existing, err := s.participants.ExistingIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify participants")
	}
	existingSet := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		existingSet[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := existingSet[id]; !ok {
			return appErrors.Referential("participant", id)
		}
	}
	return nil
}

// dedupeIDs removes duplicates preserving a deterministic sorted order.
func dedupeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// diffParticipantSets computes the associations to add and remove so the
// current set becomes the target set. Members of both sets are untouched.
func diffParticipantSets(current, target []string) (toAdd, toRemove []string) {
	currentSet := make(map[string]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	targetSet := make(map[string]struct{}, len(target))
	for _, id := range target {
		targetSet[id] = struct{}{}
	}

	for _, id := range target {
		if _, ok := currentSet[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for _, id := range current {
		if _, ok := targetSet[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}
