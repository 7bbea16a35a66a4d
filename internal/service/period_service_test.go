package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expoferia/expoferia-api/internal/models"
	appErrors "github.com/expoferia/expoferia-api/pkg/errors"
)

type mockPeriodRepo struct {
	items         map[string]*models.Period
	nameIndex     map[string]string
	projectCounts map[string]int
	deleted       []string
}

func newMockPeriodRepo() *mockPeriodRepo {
	return &mockPeriodRepo{
		items:         make(map[string]*models.Period),
		nameIndex:     make(map[string]string),
		projectCounts: make(map[string]int),
	}
}

func (m *mockPeriodRepo) List(ctx context.Context, filter models.PeriodFilter) ([]models.Period, int, error) {
	return nil, 0, nil
}

func (m *mockPeriodRepo) FindByID(ctx context.Context, id string) (*models.Period, error) {
	if period, ok := m.items[id]; ok {
		cp := *period
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPeriodRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	if owner, ok := m.nameIndex[name]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPeriodRepo) Create(ctx context.Context, period *models.Period) error {
	if period.ID == "" {
		period.ID = "generated"
	}
	cp := *period
	m.items[period.ID] = &cp
	m.nameIndex[period.Name] = period.ID
	return nil
}

func (m *mockPeriodRepo) Update(ctx context.Context, period *models.Period) error {
	cp := *period
	m.items[period.ID] = &cp
	return nil
}

func (m *mockPeriodRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

func (m *mockPeriodRepo) CountProjects(ctx context.Context, id string) (int, error) {
	return m.projectCounts[id], nil
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestPeriodServiceCreate(t *testing.T) {
	repo := newMockPeriodRepo()
	service := NewPeriodService(repo, validator.New(), zap.NewNop())

	period, err := service.Create(context.Background(), CreatePeriodRequest{
		Name:      "2026-1",
		StartDate: date(2026, time.January, 12),
		EndDate:   date(2026, time.May, 29),
		Active:    true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, period.ID)
	assert.True(t, period.Active)
}

func TestPeriodServiceCreateSameDayPeriod(t *testing.T) {
	repo := newMockPeriodRepo()
	service := NewPeriodService(repo, validator.New(), zap.NewNop())

	day := date(2026, time.March, 15)
	_, err := service.Create(context.Background(), CreatePeriodRequest{
		Name:      "Open Day",
		StartDate: day,
		EndDate:   day,
	})
	require.NoError(t, err)
}

func TestPeriodServiceCreateInvertedDates(t *testing.T) {
	repo := newMockPeriodRepo()
	service := NewPeriodService(repo, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreatePeriodRequest{
		Name:      "2026-1",
		StartDate: date(2026, time.May, 29),
		EndDate:   date(2026, time.January, 12),
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestPeriodServiceCreateDuplicateName(t *testing.T) {
	repo := newMockPeriodRepo()
	repo.nameIndex["2026-1"] = "other"
	service := NewPeriodService(repo, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), CreatePeriodRequest{
		Name:      "2026-1",
		StartDate: date(2026, time.January, 12),
		EndDate:   date(2026, time.May, 29),
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestPeriodServiceUpdateKeepsNameWhenUnchanged(t *testing.T) {
	repo := newMockPeriodRepo()
	repo.items["pe1"] = &models.Period{ID: "pe1", Name: "2026-1"}
	repo.nameIndex["2026-1"] = "pe1"
	service := NewPeriodService(repo, validator.New(), zap.NewNop())

	period, err := service.Update(context.Background(), "pe1", UpdatePeriodRequest{
		Name:      "2026-1",
		StartDate: date(2026, time.January, 12),
		EndDate:   date(2026, time.May, 29),
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-1", period.Name)
}

func TestPeriodServiceDeleteBlockedByProjects(t *testing.T) {
	repo := newMockPeriodRepo()
	repo.items["pe1"] = &models.Period{ID: "pe1", Name: "2026-1"}
	repo.projectCounts["pe1"] = 2
	service := NewPeriodService(repo, validator.New(), zap.NewNop())

	err := service.Delete(context.Background(), "pe1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrIntegrity))
	assert.Empty(t, repo.deleted)
}

func TestPeriodServiceDeleteUnreferencedPeriod(t *testing.T) {
	repo := newMockPeriodRepo()
	repo.items["pe1"] = &models.Period{ID: "pe1", Name: "2026-1"}
	service := NewPeriodService(repo, validator.New(), zap.NewNop())

	require.NoError(t, service.Delete(context.Background(), "pe1"))
	assert.Equal(t, []string{"pe1"}, repo.deleted)
}

func TestPeriodServiceGetNotFound(t *testing.T) {
	repo := newMockPeriodRepo()
	service := NewPeriodService(repo, validator.New(), zap.NewNop())

	_, err := service.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}
