package models

import "time"

// ProjectReportFilter holds the optional predicates for project reports.
// Empty fields contribute no constraint. StudentID and TeacherID are
// identity-AND-type filters: an ID of the wrong participant type matches
// nothing rather than failing.
type ProjectReportFilter struct {
	PeriodID  string `json:"period_id,omitempty"`
	SubjectID string `json:"subject_id,omitempty"`
	StudentID string `json:"student_id,omitempty"`
	TeacherID string `json:"teacher_id,omitempty"`
}

// NeedsParticipantJoin reports whether the base query must join through the
// association table, which changes row multiplicity and requires
// de-duplication of project rows.
func (f ProjectReportFilter) NeedsParticipantJoin() bool {
	return f.StudentID != "" || f.TeacherID != ""
}

// ParticipantReportFilter holds the optional predicates for participant
// reports.
type ParticipantReportFilter struct {
	PeriodID string           `json:"period_id,omitempty"`
	Type     *ParticipantType `json:"type,omitempty"`
}

// ProjectReportRow is one enriched project report entry. Participants always
// carries the complete roster, regardless of which filters selected the
// project.
type ProjectReportRow struct {
	ID           string        `db:"id" json:"id"`
	Name         string        `db:"name" json:"name"`
	Description  string        `db:"description" json:"description"`
	RegisteredAt time.Time     `db:"registered_at" json:"registered_at"`
	PeriodID     string        `db:"period_id" json:"period_id"`
	PeriodName   string        `db:"period_name" json:"period_name"`
	PeriodStart  time.Time     `db:"period_start" json:"period_start"`
	PeriodEnd    time.Time     `db:"period_end" json:"period_end"`
	SubjectID    string        `db:"subject_id" json:"subject_id"`
	SubjectName  string        `db:"subject_name" json:"subject_name"`
	SubjectCode  string        `db:"subject_code" json:"subject_code"`
	Participants []Participant `json:"participants"`
}

// ParticipantReportRow is one participant report entry. AssociatedProjects is
// a delimiter-joined aggregate of the participant's project names; only
// participants with at least one qualifying project appear.
type ParticipantReportRow struct {
	ID                 string          `db:"id" json:"id"`
	Type               ParticipantType `db:"type" json:"type"`
	FirstName          string          `db:"first_name" json:"first_name"`
	LastName           string          `db:"last_name" json:"last_name"`
	NationalID         string          `db:"national_id" json:"national_id"`
	Email              *string         `db:"email" json:"email,omitempty"`
	Phone              *string         `db:"phone" json:"phone,omitempty"`
	Major              *string         `db:"major" json:"major,omitempty"`
	AssociatedProjects string          `db:"associated_projects" json:"associated_projects"`
}

// MailingFilter optionally narrows the participant side of the mailing
// list to participants appearing in the matching participant report.
// Users with an email address are always included.
type MailingFilter struct {
	PeriodID string           `json:"period_id,omitempty"`
	Type     *ParticipantType `json:"type,omitempty"`
}

// Empty reports whether no filter is set.
func (f MailingFilter) Empty() bool {
	return f.PeriodID == "" && f.Type == nil
}

// MailingRecipient is one de-duplicated mailing-list entry.
type MailingRecipient struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Kind     string `json:"kind"`
}

// MailingList is the assembled mailing-list export.
type MailingList struct {
	Recipients []MailingRecipient `json:"recipients"`
	Addresses  string             `json:"addresses"`
}
