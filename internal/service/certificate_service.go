package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/expoferia/expoferia-api/internal/models"
	appErrors "github.com/expoferia/expoferia-api/pkg/errors"
	"github.com/expoferia/expoferia-api/pkg/export"
	"github.com/expoferia/expoferia-api/pkg/storage"
)

type certificateProjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.ProjectDetail, error)
	Roster(ctx context.Context, projectID string) ([]models.Participant, error)
}

type certificateRenderer interface {
	Render(awards []export.CertificateAward, issuedOn string) ([]byte, error)
}

// CertificateResult captures generated certificate metadata.
type CertificateResult struct {
	RelativePath string
	Token        string
	URL          string
	Awards       int
	ExpiresAt    time.Time
}

// CertificateService generates participation certificates for project
// rosters, one page per participant.
type CertificateService struct {
	projects certificateProjectRepository
	renderer certificateRenderer
	storage  fileStorage
	signer   *storage.SignedURLSigner
	prefix   string
	logger   *zap.Logger
}

// NewCertificateService creates a new certificate service instance.
func NewCertificateService(projects certificateProjectRepository, renderer certificateRenderer, store fileStorage, signer *storage.SignedURLSigner, apiPrefix string, logger *zap.Logger) *CertificateService {
	if renderer == nil {
		renderer = export.NewCertificateExporter("", "")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		projects: projects,
		renderer: renderer,
		storage:  store,
		signer:   signer,
		prefix:   apiPrefix,
		logger:   logger,
	}
}

// GenerateForProject renders certificates for everyone on the project's
// roster. A project with no participants yields a validation error rather
// than an empty document.
func (s *CertificateService) GenerateForProject(ctx context.Context, projectID string) (*CertificateResult, error) {
	detail, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	if len(detail.Participants) == 0 {
		return nil, appErrors.Validation("project has no participants to certify")
	}

	awards := make([]export.CertificateAward, 0, len(detail.Participants))
	for _, p := range detail.Participants {
		awards = append(awards, export.CertificateAward{
			FullName:    p.FirstName + " " + p.LastName,
			NationalID:  p.NationalID,
			ProjectName: detail.Name,
		})
	}

	payload, err := s.renderer.Render(awards, time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificates")
	}

	filename := fmt.Sprintf("certificates_%s_%s.pdf", detail.ID, time.Now().UTC().Format("20060102_150405"))
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificates")
	}

	token, expiresAt, err := s.signer.Generate(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	prefix := strings.TrimRight(s.prefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &CertificateResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Awards:       len(awards),
		ExpiresAt:    expiresAt,
	}, nil
}
