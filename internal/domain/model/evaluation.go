// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/rebooked/apsmatch/internal/domain/scoring"
	"github.com/rebooked/apsmatch/internal/domain/types"
)

// Status is the lifecycle state of an evaluation.
type Status string

// Evaluation statuses.
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Profile is a learner's marks plus the programs to evaluate. An empty
// ProgramIDs list means every program in the catalog.
type Profile struct {
	Subjects   []scoring.MarkedSubject `json:"subjects"`
	ProgramIDs []string                `json:"program_ids,omitempty"`
}

// Job is an asynchronous evaluation request travelling through the queue.
type Job struct {
	ID          string    // evaluation id
	RequestID   string    // client idempotency key, may be empty
	Profile     Profile   // learner input
	SubmittedAt time.Time // enqueue time, used for latency metrics
}

// Evaluation is the stored outcome of a job.
type Evaluation struct {
	ID          string                `json:"id"`
	RequestID   string                `json:"request_id,omitempty"`
	Status      Status                `json:"status"`
	SubmittedAt time.Time             `json:"submitted_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	APS         *scoring.Result       `json:"aps,omitempty"`
	Programs    []types.ProgramResult `json:"programs,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// NewPending creates the placeholder stored before a job is enqueued.
func NewPending(job Job) Evaluation {
	return Evaluation{
		ID:          job.ID,
		RequestID:   job.RequestID,
		Status:      StatusPending,
		SubmittedAt: job.SubmittedAt,
	}
}

// Complete marks the evaluation done with its results.
func (e Evaluation) Complete(aps scoring.Result, programs []types.ProgramResult, at time.Time) Evaluation {
	e.Status = StatusCompleted
	e.APS = &aps
	e.Programs = programs
	e.Error = ""
	e.CompletedAt = &at
	return e
}

// Fail marks the evaluation failed with err's message.
func (e Evaluation) Fail(err error, at time.Time) Evaluation {
	e.Status = StatusFailed
	e.Error = err.Error()
	e.CompletedAt = &at
	return e
}

// Done reports whether the evaluation has left the pending state.
func (e Evaluation) Done() bool { return e.Status != StatusPending }
