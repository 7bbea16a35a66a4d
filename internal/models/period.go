package models

import "time"

// Period models an academic term bounding which projects are current.
// StartDate must not be after EndDate; equal dates are accepted.
type Period struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PeriodFilter defines filters supported by period list endpoints.
type PeriodFilter struct {
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
