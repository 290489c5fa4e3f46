package domain

import (
	"errors"
	"time"
)

var (
	ErrJobNotFound   = errors.New("media job not found")
	ErrJobFinished   = errors.New("media job already finished")
	ErrInvalidStatus = errors.New("invalid job status")
)

const KindVideo = "video"

// Job tracks one asynchronous media generation.
type Job struct {
	JobID           string     `json:"jobId"`
	UserID          string     `json:"userId"`
	Kind            string     `json:"kind"`
	Status          string     `json:"status"` // pending, running, completed, failed, cancelled, expired
	Prompt          string     `json:"prompt"`
	DurationSeconds int        `json:"durationSeconds,omitempty"`
	AspectRatio     string     `json:"aspectRatio,omitempty"`
	Attempts        int        `json:"attempts"`
	ResultURL       string     `json:"resultUrl,omitempty"`
	ContentType     string     `json:"contentType,omitempty"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// IsTerminal reports whether the status can no longer change.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

func IsValidStatus(status string) bool {
	return status == StatusPending || status == StatusRunning || IsTerminal(status)
}

// Finish moves the job to a terminal status.
func (j *Job) Finish(status string, now time.Time) error {
	if !IsTerminal(status) {
		return ErrInvalidStatus
	}
	j.Status = status
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}
