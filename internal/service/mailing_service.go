package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/expoferia/expoferia-api/internal/models"
	appErrors "github.com/expoferia/expoferia-api/pkg/errors"
	"github.com/expoferia/expoferia-api/pkg/export"
)

type mailingUserRepository interface {
	ListWithEmail(ctx context.Context) ([]models.User, error)
}

type mailingParticipantRepository interface {
	ListWithEmail(ctx context.Context) ([]models.Participant, error)
}

type mailingReportService interface {
	ParticipantReport(ctx context.Context, filter models.ParticipantReportFilter) ([]models.ParticipantReportRow, error)
}

// MailingService assembles the institution-wide mailing list from users
// and participants that have an email address on record. A filter narrows
// the participant side to those appearing in the matching report.
type MailingService struct {
	users        mailingUserRepository
	participants mailingParticipantRepository
	reports      mailingReportService
	exporter     *export.CSVExporter
	delimiter    string
	logger       *zap.Logger
}

// NewMailingService creates a new mailing service instance.
func NewMailingService(users mailingUserRepository, participants mailingParticipantRepository, reports mailingReportService, delimiter string, logger *zap.Logger) *MailingService {
	if delimiter == "" {
		delimiter = "; "
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailingService{
		users:        users,
		participants: participants,
		reports:      reports,
		exporter:     export.NewCSVExporter(),
		delimiter:    delimiter,
		logger:       logger,
	}
}

// Build returns the de-duplicated mailing list. The same address appearing
// on a user and a participant record is emitted once; recipients are
// sorted by email for stable output.
func (s *MailingService) Build(ctx context.Context, filter models.MailingFilter) (*models.MailingList, error) {
	users, err := s.users.ListWithEmail(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user addresses")
	}
	participants, err := s.loadParticipants(ctx, filter)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	recipients := make([]models.MailingRecipient, 0, len(users)+len(participants))

	for _, u := range users {
		if u.Email == nil {
			continue
		}
		email := strings.ToLower(strings.TrimSpace(*u.Email))
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		name := u.Username
		if u.FullName != nil && *u.FullName != "" {
			name = *u.FullName
		}
		recipients = append(recipients, models.MailingRecipient{
			ID:       u.ID,
			FullName: name,
			Email:    email,
			Kind:     "USER",
		})
	}

	for _, p := range participants {
		if p.Email == nil {
			continue
		}
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		recipients = append(recipients, models.MailingRecipient{
			ID:       p.ID,
			FullName: p.FirstName + " " + p.LastName,
			Email:    email,
			Kind:     string(p.Type),
		})
	}

	sort.Slice(recipients, func(i, j int) bool {
		return recipients[i].Email < recipients[j].Email
	})

	addresses := make([]string, len(recipients))
	for i, r := range recipients {
		addresses[i] = r.Email
	}

	return &models.MailingList{
		Recipients: recipients,
		Addresses:  strings.Join(addresses, s.delimiter),
	}, nil
}

// loadParticipants chooses the source of participant addresses. Without a
// filter the full registry qualifies; with one, only participants appearing
// in the matching report do, which also excludes anyone without a project.
func (s *MailingService) loadParticipants(ctx context.Context, filter models.MailingFilter) ([]models.Participant, error) {
	if filter.Empty() || s.reports == nil {
		participants, err := s.participants.ListWithEmail(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant addresses")
		}
		return participants, nil
	}

	rows, err := s.reports.ParticipantReport(ctx, models.ParticipantReportFilter{
		PeriodID: filter.PeriodID,
		Type:     filter.Type,
	})
	if err != nil {
		return nil, err
	}

	participants := make([]models.Participant, 0, len(rows))
	for _, row := range rows {
		participants = append(participants, models.Participant{
			ID:        row.ID,
			Type:      row.Type,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			Email:     row.Email,
		})
	}
	return participants, nil
}

// ExportCSV renders the mailing list as a CSV document.
func (s *MailingService) ExportCSV(ctx context.Context, filter models.MailingFilter) ([]byte, error) {
	list, err := s.Build(ctx, filter)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"full_name", "email", "kind"},
		Rows:    make([]map[string]string, 0, len(list.Recipients)),
	}
	for _, r := range list.Recipients {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"full_name": r.FullName,
			"email":     r.Email,
			"kind":      r.Kind,
		})
	}

	payload, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render mailing list")
	}
	return payload, nil
}
