package model

import "time"

// Task lifecycle: pending_approval -> open -> in_progress -> completed.
// Managers can reject a proposal; creators and managers can cancel
// anything not yet completed.
type Task struct {
	ID          string
	Title       string
	Description string
	Department  string
	Priority    string
	Status      string
	CreatedBy   string
	StartDate   time.Time
	EndDate     time.Time
	MaxWorkers  int
	Skills      []string
	ApprovedBy  string
	ApprovedAt  *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Booking struct {
	ID        string
	TaskID    string
	WorkerID  string
	StartDate time.Time
	EndDate   time.Time
	Status    string
	CreatedAt time.Time
}

type Volunteer struct {
	TaskID    string
	WorkerID  string
	Note      string
	CreatedAt time.Time
}

type ProgressEntry struct {
	ID        string
	TaskID    string
	WorkerID  string
	Percent   int
	Note      string
	CreatedAt time.Time
}

type Review struct {
	ID         string
	TaskID     string
	WorkerID   string
	ReviewerID string
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

type Skill struct {
	ID   string
	Name string
}
