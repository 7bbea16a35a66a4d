package models

import "time"

// ParticipantType distinguishes students from teachers. The values sort
// lexicographically with students first, which report ordering relies on.
type ParticipantType string

const (
	ParticipantStudent ParticipantType = "STUDENT"
	ParticipantTeacher ParticipantType = "TEACHER"
)

// Valid reports whether the type is one of the known values.
func (t ParticipantType) Valid() bool {
	return t == ParticipantStudent || t == ParticipantTeacher
}

// Participant represents a student or teacher eligible to join projects.
// Major is populated only for students and cleared for teachers.
type Participant struct {
	ID         string          `db:"id" json:"id"`
	Type       ParticipantType `db:"type" json:"type"`
	FirstName  string          `db:"first_name" json:"first_name"`
	LastName   string          `db:"last_name" json:"last_name"`
	NationalID string          `db:"national_id" json:"national_id"`
	Email      *string         `db:"email" json:"email,omitempty"`
	Phone      *string         `db:"phone" json:"phone,omitempty"`
	Major      *string         `db:"major" json:"major,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// ParticipantFilter encapsulates search parameters for listing participants.
type ParticipantFilter struct {
	Type      *ParticipantType
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
