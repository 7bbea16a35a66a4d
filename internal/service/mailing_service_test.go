package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expoferia/expoferia-api/internal/models"
)

type mockMailingUsers struct{ users []models.User }

func (m *mockMailingUsers) ListWithEmail(ctx context.Context) ([]models.User, error) {
	return m.users, nil
}

type mockMailingParticipants struct{ participants []models.Participant }

func (m *mockMailingParticipants) ListWithEmail(ctx context.Context) ([]models.Participant, error) {
	return m.participants, nil
}

func TestMailingServiceBuildDeduplicatesAcrossSources(t *testing.T) {
	users := &mockMailingUsers{users: []models.User{
		{ID: "u1", Username: "admin", Email: strPtr("Shared@Example.com")},
		{ID: "u2", Username: "coord", FullName: strPtr("Coordinator"), Email: strPtr("coord@example.com")},
	}}
	participants := &mockMailingParticipants{participants: []models.Participant{
		{ID: "pa1", Type: models.ParticipantStudent, FirstName: "Ana", LastName: "Diaz", Email: strPtr("shared@example.com ")},
		{ID: "pa2", Type: models.ParticipantTeacher, FirstName: "Luis", LastName: "Marin", Email: strPtr("luis@example.com")},
	}}
	service := NewMailingService(users, participants, nil, "; ", zap.NewNop())

	list, err := service.Build(context.Background(), models.MailingFilter{})
	require.NoError(t, err)
	require.Len(t, list.Recipients, 3)

	emails := make([]string, len(list.Recipients))
	for i, r := range list.Recipients {
		emails[i] = r.Email
	}
	assert.Equal(t, []string{"coord@example.com", "luis@example.com", "shared@example.com"}, emails)
	assert.Equal(t, "coord@example.com; luis@example.com; shared@example.com", list.Addresses)
}

func TestMailingServiceBuildUserWinsSharedAddress(t *testing.T) {
	users := &mockMailingUsers{users: []models.User{
		{ID: "u1", Username: "admin", Email: strPtr("shared@example.com")},
	}}
	participants := &mockMailingParticipants{participants: []models.Participant{
		{ID: "pa1", Type: models.ParticipantStudent, FirstName: "Ana", LastName: "Diaz", Email: strPtr("shared@example.com")},
	}}
	service := NewMailingService(users, participants, nil, "; ", zap.NewNop())

	list, err := service.Build(context.Background(), models.MailingFilter{})
	require.NoError(t, err)
	require.Len(t, list.Recipients, 1)
	assert.Equal(t, "USER", list.Recipients[0].Kind)
}

func TestMailingServiceBuildEmptySources(t *testing.T) {
	service := NewMailingService(&mockMailingUsers{}, &mockMailingParticipants{}, nil, "; ", zap.NewNop())

	list, err := service.Build(context.Background(), models.MailingFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Recipients)
	assert.Empty(t, list.Addresses)
}

type mockMailingReports struct {
	rows       []models.ParticipantReportRow
	lastFilter models.ParticipantReportFilter
}

func (m *mockMailingReports) ParticipantReport(ctx context.Context, filter models.ParticipantReportFilter) ([]models.ParticipantReportRow, error) {
	m.lastFilter = filter
	return m.rows, nil
}

func TestMailingServiceBuildFilteredUsesReport(t *testing.T) {
	// The registry carries a participant the report does not; with a filter
	// set, only report rows contribute participant addresses.
	participants := &mockMailingParticipants{participants: []models.Participant{
		{ID: "pa9", Type: models.ParticipantTeacher, FirstName: "No", LastName: "Project", Email: strPtr("idle@example.com")},
	}}
	reports := &mockMailingReports{rows: []models.ParticipantReportRow{
		{ID: "pa1", Type: models.ParticipantStudent, FirstName: "Ana", LastName: "Diaz", Email: strPtr("ana@example.com")},
		{ID: "pa2", Type: models.ParticipantStudent, FirstName: "Luis", LastName: "Marin"},
	}}
	service := NewMailingService(&mockMailingUsers{}, participants, reports, "; ", zap.NewNop())

	studentType := models.ParticipantStudent
	list, err := service.Build(context.Background(), models.MailingFilter{PeriodID: "pe1", Type: &studentType})
	require.NoError(t, err)
	require.Len(t, list.Recipients, 1)
	assert.Equal(t, "ana@example.com", list.Recipients[0].Email)
	assert.Equal(t, "pe1", reports.lastFilter.PeriodID)
	require.NotNil(t, reports.lastFilter.Type)
	assert.Equal(t, models.ParticipantStudent, *reports.lastFilter.Type)
}

func TestMailingServiceExportCSV(t *testing.T) {
	participants := &mockMailingParticipants{participants: []models.Participant{
		{ID: "pa1", Type: models.ParticipantStudent, FirstName: "Ana", LastName: "Diaz", Email: strPtr("ana@example.com")},
	}}
	service := NewMailingService(&mockMailingUsers{}, participants, nil, "; ", zap.NewNop())

	payload, err := service.ExportCSV(context.Background(), models.MailingFilter{})
	require.NoError(t, err)

	content := string(payload)
	assert.True(t, strings.HasPrefix(content, "full_name,email,kind"))
	assert.Contains(t, content, "Ana Diaz,ana@example.com,STUDENT")
}
