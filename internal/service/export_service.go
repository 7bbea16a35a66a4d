package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/expoferia/expoferia-api/internal/models"
	appErrors "github.com/expoferia/expoferia-api/pkg/errors"
	"github.com/expoferia/expoferia-api/pkg/export"
	"github.com/expoferia/expoferia-api/pkg/storage"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	// FormatCSV renders comma separated values.
	FormatCSV ExportFormat = "csv"
	// FormatPDF renders a printable document.
	FormatPDF ExportFormat = "pdf"
)

// Valid reports whether the format is supported.
func (f ExportFormat) Valid() bool {
	return f == FormatCSV || f == FormatPDF
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders report datasets into downloadable files. Exports
// are generated synchronously within the request.
type ExportService struct {
	reports *ReportService
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(reports *ReportService, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		reports: reports,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// ExportProjectReport renders the filtered project report and stores the file.
func (s *ExportService) ExportProjectReport(ctx context.Context, filter models.ProjectReportFilter, format ExportFormat) (*ExportResult, error) {
	if !format.Valid() {
		return nil, appErrors.Validation("format must be csv or pdf")
	}

	rows, err := s.reports.ProjectReport(ctx, filter)
	if err != nil {
		return nil, err
	}

	dataset := projectReportDataset(rows)
	title := "Project Report"
	return s.render(dataset, title, "projects", format)
}

// ExportParticipantReport renders the filtered participant report and stores the file.
func (s *ExportService) ExportParticipantReport(ctx context.Context, filter models.ParticipantReportFilter, format ExportFormat) (*ExportResult, error) {
	if !format.Valid() {
		return nil, appErrors.Validation("format must be csv or pdf")
	}

	rows, err := s.reports.ParticipantReport(ctx, filter)
	if err != nil {
		return nil, err
	}

	dataset := participantReportDataset(rows)
	title := "Participant Report"
	return s.render(dataset, title, "participants", format)
}

// ParseToken validates a download token and returns the stored path.
func (s *ExportService) ParseToken(token string) (string, time.Time, error) {
	relPath, expiresAt, err := s.signer.Parse(token)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	return relPath, expiresAt, nil
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) render(dataset export.Dataset, title, kind string, format ExportFormat) (*ExportResult, error) {
	var payload []byte
	var err error
	switch format {
	case FormatCSV:
		payload, err = s.csv.Render(dataset)
	case FormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("%s_%s.%s", kind, time.Now().UTC().Format("20060102_150405"), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

func projectReportDataset(rows []models.ProjectReportRow) export.Dataset {
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		names := make([]string, 0, len(row.Participants))
		for _, p := range row.Participants {
			names = append(names, p.FirstName+" "+p.LastName)
		}
		dataRows = append(dataRows, map[string]string{
			"Project":      row.Name,
			"Period":       row.PeriodName,
			"Subject":      fmt.Sprintf("%s (%s)", row.SubjectName, row.SubjectCode),
			"Registered":   row.RegisteredAt.UTC().Format(time.RFC3339),
			"Participants": strings.Join(names, "; "),
		})
	}
	return export.Dataset{
		Headers: []string{"Project", "Period", "Subject", "Registered", "Participants"},
		Rows:    dataRows,
	}
}

func participantReportDataset(rows []models.ParticipantReportRow) export.Dataset {
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		email := ""
		if row.Email != nil {
			email = *row.Email
		}
		dataRows = append(dataRows, map[string]string{
			"Name":        row.FirstName + " " + row.LastName,
			"Type":        string(row.Type),
			"National ID": row.NationalID,
			"Email":       email,
			"Projects":    row.AssociatedProjects,
		})
	}
	return export.Dataset{
		Headers: []string{"Name", "Type", "National ID", "Email", "Projects"},
		Rows:    dataRows,
	}
}
