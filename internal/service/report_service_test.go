package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expoferia/expoferia-api/internal/models"
	appErrors "github.com/expoferia/expoferia-api/pkg/errors"
)

type mockReportRepo struct {
	projects     []models.ProjectReportRow
	rosters      map[string][]models.Participant
	participants []models.ParticipantReportRow

	lastProjectFilter     models.ProjectReportFilter
	lastParticipantFilter models.ParticipantReportFilter
	projectCalls          int
	participantCalls      int
}

func (m *mockReportRepo) ListProjects(ctx context.Context, filter models.ProjectReportFilter) ([]models.ProjectReportRow, error) {
	m.projectCalls++
	m.lastProjectFilter = filter
	return m.projects, nil
}

func (m *mockReportRepo) ProjectRoster(ctx context.Context, projectID string) ([]models.Participant, error) {
	return m.rosters[projectID], nil
}

func (m *mockReportRepo) ListParticipants(ctx context.Context, filter models.ParticipantReportFilter) ([]models.ParticipantReportRow, error) {
	m.participantCalls++
	m.lastParticipantFilter = filter
	return m.participants, nil
}

// filteringReportRepo evaluates the report predicates in memory the way the
// SQL layer composes them, every set predicate ANDed onto the selection.
type filteringReportRepo struct {
	projects []models.ProjectReportRow
	rosters  map[string][]models.Participant
}

func (m *filteringReportRepo) ListProjects(ctx context.Context, filter models.ProjectReportFilter) ([]models.ProjectReportRow, error) {
	var rows []models.ProjectReportRow
	for _, row := range m.projects {
		if filter.PeriodID != "" && row.PeriodID != filter.PeriodID {
			continue
		}
		if filter.SubjectID != "" && row.SubjectID != filter.SubjectID {
			continue
		}
		if filter.StudentID != "" && !m.hasMember(row.ID, filter.StudentID, models.ParticipantStudent) {
			continue
		}
		if filter.TeacherID != "" && !m.hasMember(row.ID, filter.TeacherID, models.ParticipantTeacher) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *filteringReportRepo) hasMember(projectID, participantID string, participantType models.ParticipantType) bool {
	for _, member := range m.rosters[projectID] {
		if member.ID == participantID && member.Type == participantType {
			return true
		}
	}
	return false
}

func (m *filteringReportRepo) ProjectRoster(ctx context.Context, projectID string) ([]models.Participant, error) {
	return m.rosters[projectID], nil
}

func (m *filteringReportRepo) ListParticipants(ctx context.Context, filter models.ParticipantReportFilter) ([]models.ParticipantReportRow, error) {
	return nil, nil
}

type memCacheRepo struct {
	entries map[string][]byte
}

func (m *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = raw
	return nil
}

func (m *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.entries = make(map[string][]byte)
	return nil
}

func newReportService(repo reportRepository, cacheRepo CacheRepository, participantIDs ...string) *ReportService {
	participants := &mockParticipantLookup{ids: make(map[string]bool)}
	for _, id := range participantIDs {
		participants.ids[id] = true
	}
	var cache *CacheService
	if cacheRepo != nil {
		cache = NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	}
	return NewReportService(
		repo,
		&mockPeriodLookup{ids: map[string]bool{"pe1": true}},
		&mockSubjectLookup{ids: map[string]bool{"s1": true}},
		participants,
		cache,
		time.Minute,
		zap.NewNop(),
	)
}

func TestReportServiceProjectReportEnrichesRosters(t *testing.T) {
	repo := &mockReportRepo{
		projects: []models.ProjectReportRow{{ID: "pr1", Name: "Solar Car"}},
		rosters: map[string][]models.Participant{
			"pr1": {
				{ID: "pa1", Type: models.ParticipantStudent},
				{ID: "pa2", Type: models.ParticipantTeacher},
			},
		},
	}
	service := newReportService(repo, nil)

	rows, err := service.ProjectReport(context.Background(), models.ProjectReportFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0].Participants, 2)
}

func TestReportServiceProjectReportEmptyResultIsNotAnError(t *testing.T) {
	service := newReportService(&mockReportRepo{}, nil)

	rows, err := service.ProjectReport(context.Background(), models.ProjectReportFilter{PeriodID: "pe1"})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestReportServiceProjectReportUnknownPeriod(t *testing.T) {
	service := newReportService(&mockReportRepo{}, nil)

	_, err := service.ProjectReport(context.Background(), models.ProjectReportFilter{PeriodID: "missing"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrReferential))
}

func TestReportServiceProjectReportUnknownStudent(t *testing.T) {
	service := newReportService(&mockReportRepo{}, nil)

	_, err := service.ProjectReport(context.Background(), models.ProjectReportFilter{StudentID: "ghost"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrReferential))
}

func TestReportServiceProjectReportWrongTypeIdentityYieldsEmpty(t *testing.T) {
	// The ID exists but belongs to a teacher. The filter passes reference
	// checks and the type predicate in storage matches nothing.
	repo := &mockReportRepo{}
	service := newReportService(repo, nil, "teacher-1")

	rows, err := service.ProjectReport(context.Background(), models.ProjectReportFilter{StudentID: "teacher-1"})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, "teacher-1", repo.lastProjectFilter.StudentID)
}

func TestReportServiceProjectReportAddedFiltersOnlyNarrow(t *testing.T) {
	repo := &filteringReportRepo{
		projects: []models.ProjectReportRow{
			{ID: "pr1", PeriodID: "pe1", SubjectID: "s1"},
			{ID: "pr2", PeriodID: "pe1", SubjectID: "s2"},
			{ID: "pr3", PeriodID: "pe2", SubjectID: "s1"},
		},
		rosters: map[string][]models.Participant{
			"pr1": {{ID: "stu1", Type: models.ParticipantStudent}, {ID: "tea1", Type: models.ParticipantTeacher}},
			"pr2": {{ID: "stu1", Type: models.ParticipantStudent}},
			"pr3": {{ID: "tea1", Type: models.ParticipantTeacher}},
		},
	}
	service := newReportService(repo, nil, "stu1", "tea1", "stu2")

	// Every filter extends the previous one with one more predicate, so each
	// result must be a subset of the one before it.
	filters := []models.ProjectReportFilter{
		{},
		{PeriodID: "pe1"},
		{PeriodID: "pe1", SubjectID: "s1"},
		{PeriodID: "pe1", SubjectID: "s1", StudentID: "stu1"},
		{PeriodID: "pe1", SubjectID: "s1", StudentID: "stu1", TeacherID: "tea1"},
	}

	var previous map[string]struct{}
	for i, filter := range filters {
		rows, err := service.ProjectReport(context.Background(), filter)
		require.NoError(t, err)
		ids := make(map[string]struct{}, len(rows))
		for _, row := range rows {
			ids[row.ID] = struct{}{}
		}
		if i > 0 {
			assert.LessOrEqual(t, len(ids), len(previous))
			for id := range ids {
				assert.Contains(t, previous, id)
			}
		}
		previous = ids
	}
	assert.Equal(t, map[string]struct{}{"pr1": {}}, previous)

	// Narrowing all the way to a member no project has yields the empty
	// report, never an error.
	rows, err := service.ProjectReport(context.Background(), models.ProjectReportFilter{PeriodID: "pe1", SubjectID: "s1", StudentID: "stu2"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReportServiceProjectReportServesFromCache(t *testing.T) {
	repo := &mockReportRepo{
		projects: []models.ProjectReportRow{{ID: "pr1", Name: "Solar Car"}},
		rosters:  map[string][]models.Participant{"pr1": {{ID: "pa1"}}},
	}
	service := newReportService(repo, &memCacheRepo{})

	first, err := service.ProjectReport(context.Background(), models.ProjectReportFilter{PeriodID: "pe1"})
	require.NoError(t, err)
	second, err := service.ProjectReport(context.Background(), models.ProjectReportFilter{PeriodID: "pe1"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.projectCalls)
}

func TestReportServiceInvalidateCacheForcesRebuild(t *testing.T) {
	repo := &mockReportRepo{}
	cacheRepo := &memCacheRepo{}
	service := newReportService(repo, cacheRepo)

	_, err := service.ProjectReport(context.Background(), models.ProjectReportFilter{})
	require.NoError(t, err)
	service.InvalidateCache(context.Background())
	_, err = service.ProjectReport(context.Background(), models.ProjectReportFilter{})
	require.NoError(t, err)

	assert.Equal(t, 2, repo.projectCalls)
}

func TestReportServiceParticipantReport(t *testing.T) {
	repo := &mockReportRepo{
		participants: []models.ParticipantReportRow{
			{ID: "pa1", Type: models.ParticipantStudent, AssociatedProjects: "Robot Arm; Solar Car"},
		},
	}
	service := newReportService(repo, nil)

	studentType := models.ParticipantStudent
	rows, err := service.ParticipantReport(context.Background(), models.ParticipantReportFilter{
		PeriodID: "pe1",
		Type:     &studentType,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Robot Arm; Solar Car", rows[0].AssociatedProjects)
	assert.Equal(t, "pe1", repo.lastParticipantFilter.PeriodID)
}

func TestReportServiceParticipantReportInvalidType(t *testing.T) {
	service := newReportService(&mockReportRepo{}, nil)

	badType := models.ParticipantType("ALUMNI")
	_, err := service.ParticipantReport(context.Background(), models.ParticipantReportFilter{Type: &badType})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestReportServiceParticipantReportEmptyResult(t *testing.T) {
	service := newReportService(&mockReportRepo{}, nil)

	rows, err := service.ParticipantReport(context.Background(), models.ParticipantReportFilter{})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}
