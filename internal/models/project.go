package models

import "time"

// Project is the central aggregate: one period, one subject, and a
// many-to-many set of participants via the project_participants table.
type Project struct {
	ID           string    `db:"id" json:"id"`
	PeriodID     string    `db:"period_id" json:"period_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProjectSummary is the list shape with joined period and subject names.
type ProjectSummary struct {
	Project
	PeriodName  string `db:"period_name" json:"period_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
}

// ProjectDetail carries the full project row plus joined context and the
// complete participant roster.
type ProjectDetail struct {
	Project
	PeriodName   string        `db:"period_name" json:"period_name"`
	PeriodStart  time.Time     `db:"period_start" json:"period_start"`
	PeriodEnd    time.Time     `db:"period_end" json:"period_end"`
	SubjectName  string        `db:"subject_name" json:"subject_name"`
	SubjectCode  string        `db:"subject_code" json:"subject_code"`
	Participants []Participant `json:"participants"`
}

// ProjectFilter defines filters supported by project list endpoints.
type ProjectFilter struct {
	PeriodID  string
	SubjectID string
	Search    string
	Page      int
	PageSize  int
}

// ParticipantDiff captures the outcome of reconciling a project's
// participant set against a desired target set.
type ParticipantDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}
