package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expoferia/expoferia-api/internal/models"
	appErrors "github.com/expoferia/expoferia-api/pkg/errors"
	"github.com/expoferia/expoferia-api/pkg/export"
	"github.com/expoferia/expoferia-api/pkg/storage"
)

func newExportServiceForTest(t *testing.T, repo *mockReportRepo) (*ExportService, *storage.DocumentStore) {
	t.Helper()
	store, err := storage.NewDocumentStore(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	svc := NewExportService(newReportService(repo, nil), store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceProjectReportCSV(t *testing.T) {
	repo := &mockReportRepo{
		projects: []models.ProjectReportRow{
			{ID: "pr1", Name: "Solar Car", PeriodName: "2026-1", SubjectName: "Physics", SubjectCode: "PHY101", RegisteredAt: time.Now()},
		},
		rosters: map[string][]models.Participant{
			"pr1": {{ID: "pa1", FirstName: "Ana", LastName: "Diaz", Type: models.ParticipantStudent}},
		},
	}
	svc, store := newExportServiceForTest(t, repo)

	result, err := svc.ExportProjectReport(context.Background(), models.ProjectReportFilter{}, FormatCSV)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)
	assert.Equal(t, FormatCSV, result.Format)
	assert.Contains(t, result.URL, "/api/v1/exports/")

	info, err := os.Stat(store.Path(result.RelativePath))
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceParticipantReportPDF(t *testing.T) {
	repo := &mockReportRepo{
		participants: []models.ParticipantReportRow{
			{ID: "pa1", FirstName: "Ana", LastName: "Diaz", Type: models.ParticipantStudent, NationalID: "V-100", AssociatedProjects: "Solar Car"},
		},
	}
	svc, store := newExportServiceForTest(t, repo)

	result, err := svc.ExportParticipantReport(context.Background(), models.ParticipantReportFilter{}, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, result.Format)

	info, err := os.Stat(store.Path(result.RelativePath))
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t, &mockReportRepo{})

	_, err := svc.ExportProjectReport(context.Background(), models.ProjectReportFilter{}, ExportFormat("xlsx"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestExportServicePropagatesFilterErrors(t *testing.T) {
	svc, _ := newExportServiceForTest(t, &mockReportRepo{})

	_, err := svc.ExportProjectReport(context.Background(), models.ProjectReportFilter{PeriodID: "missing"}, FormatCSV)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrReferential))
}

func TestExportServiceTokenRoundTrip(t *testing.T) {
	repo := &mockReportRepo{
		projects: []models.ProjectReportRow{{ID: "pr1", Name: "Solar Car", RegisteredAt: time.Now()}},
		rosters:  map[string][]models.Participant{},
	}
	svc, _ := newExportServiceForTest(t, repo)

	result, err := svc.ExportProjectReport(context.Background(), models.ProjectReportFilter{}, FormatCSV)
	require.NoError(t, err)

	relPath, expiresAt, err := svc.ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.RelativePath, relPath)
	assert.WithinDuration(t, result.ExpiresAt, expiresAt, time.Second)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}

func TestExportServiceParseTokenRejectsTampering(t *testing.T) {
	svc, _ := newExportServiceForTest(t, &mockReportRepo{})

	_, _, err := svc.ParseToken("not-a-token")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}
