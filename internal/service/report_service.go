package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/expoferia/expoferia-api/internal/models"
	appErrors "github.com/expoferia/expoferia-api/pkg/errors"
)

type reportRepository interface {
	ListProjects(ctx context.Context, filter models.ProjectReportFilter) ([]models.ProjectReportRow, error)
	ProjectRoster(ctx context.Context, projectID string) ([]models.Participant, error)
	ListParticipants(ctx context.Context, filter models.ParticipantReportFilter) ([]models.ParticipantReportRow, error)
}

type reportParticipantRepository interface {
	FindByID(ctx context.Context, id string) (*models.Participant, error)
}

// ReportService assembles the filtered project and participant reports.
// Results that match nothing are empty reports, not errors.
type ReportService struct {
	repo         reportRepository
	periods      projectPeriodRepository
	subjects     projectSubjectRepository
	participants reportParticipantRepository
	cache        *CacheService
	cacheTTL     time.Duration
	logger       *zap.Logger
}

// NewReportService creates a new report service instance.
func NewReportService(
	repo reportRepository,
	periods projectPeriodRepository,
	subjects projectSubjectRepository,
	participants reportParticipantRepository,
	cache *CacheService,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:         repo,
		periods:      periods,
		subjects:     subjects,
		participants: participants,
		cache:        cache,
		cacheTTL:     cacheTTL,
		logger:       logger,
	}
}

// ProjectReport returns projects matching the filter, each enriched with
// its complete roster. The roster is loaded per project after selection,
// so an identity filter narrows which projects appear but never which
// participants are listed under them.
func (s *ReportService) ProjectReport(ctx context.Context, filter models.ProjectReportFilter) ([]models.ProjectReportRow, error) {
	if err := s.checkFilterReferences(ctx, filter); err != nil {
		return nil, err
	}

	cacheKey := projectReportCacheKey(filter)
	var cached []models.ProjectReportRow
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := s.repo.ListProjects(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build project report")
	}

	for i := range rows {
		roster, err := s.repo.ProjectRoster(ctx, rows[i].ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report roster")
		}
		if roster == nil {
			roster = []models.Participant{}
		}
		rows[i].Participants = roster
	}

	if rows == nil {
		rows = []models.ProjectReportRow{}
	}

	if err := s.cache.Set(ctx, cacheKey, rows, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache project report", zap.Error(err))
	}

	return rows, nil
}

// ParticipantReport returns participants with their aggregated project
// names. Participants without any project association never appear.
func (s *ReportService) ParticipantReport(ctx context.Context, filter models.ParticipantReportFilter) ([]models.ParticipantReportRow, error) {
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, appErrors.Validation("type must be STUDENT or TEACHER")
	}
	if filter.PeriodID != "" {
		if _, err := s.periods.FindByID(ctx, filter.PeriodID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Referential("period", filter.PeriodID)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify period")
		}
	}

	cacheKey := participantReportCacheKey(filter)
	var cached []models.ParticipantReportRow
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := s.repo.ListParticipants(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build participant report")
	}
	if rows == nil {
		rows = []models.ParticipantReportRow{}
	}

	if err := s.cache.Set(ctx, cacheKey, rows, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache participant report", zap.Error(err))
	}

	return rows, nil
}

// InvalidateCache drops cached reports after writes touching report inputs.
func (s *ReportService) InvalidateCache(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "reports:*"); err != nil {
		s.logger.Warn("failed to invalidate report cache", zap.Error(err))
	}
}

// checkFilterReferences verifies each referenced ID exists. A participant
// ID of the wrong type passes here and simply matches no projects, because
// the selection predicate requires both identity and type.
func (s *ReportService) checkFilterReferences(ctx context.Context, filter models.ProjectReportFilter) error {
	if filter.PeriodID != "" {
		if _, err := s.periods.FindByID(ctx, filter.PeriodID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Referential("period", filter.PeriodID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify period")
		}
	}
	if filter.SubjectID != "" {
		if _, err := s.subjects.FindByID(ctx, filter.SubjectID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Referential("subject", filter.SubjectID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify subject")
		}
	}
	for _, id := range []string{filter.StudentID, filter.TeacherID} {
		if id == "" {
			continue
		}
		if _, err := s.participants.FindByID(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Referential("participant", id)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify participant")
		}
	}
	return nil
}

func projectReportCacheKey(filter models.ProjectReportFilter) string {
	return fmt.Sprintf("reports:projects:p=%s:s=%s:st=%s:t=%s", filter.PeriodID, filter.SubjectID, filter.StudentID, filter.TeacherID)
}

func participantReportCacheKey(filter models.ParticipantReportFilter) string {
	t := ""
	if filter.Type != nil {
		t = string(*filter.Type)
	}
	return fmt.Sprintf("reports:participants:p=%s:t=%s", filter.PeriodID, t)
}
