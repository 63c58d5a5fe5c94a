package loadgen

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when a Config cannot drive a run.
var ErrInvalidConfig = errors.New("invalid load test config")

// Config holds configuration for a load run.
type Config struct {
	BaseURL        string        // Base URL of the service
	NumProfiles    int           // Number of learner profiles to submit
	DuplicateRatio float64       // Share of submissions that repeat an earlier request id
	Workers        int           // Number of concurrent workers
	Timeout        time.Duration // HTTP request timeout
	PollInterval   time.Duration // Delay between result polls
	PollTimeout    time.Duration // Give up on pending evaluations after this long
	OutputFile     string        // Output file for generated submissions
	LogFile        string        // Log file for run output
	Seed           uint64        // Generator seed, 0 picks a random one
	Verbose        bool          // Enable verbose logging
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.NumProfiles <= 0:
		return fmt.Errorf("%w: profiles must be positive", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.DuplicateRatio < 0 || c.DuplicateRatio >= 1:
		return fmt.Errorf("%w: duplicate ratio must be in [0, 1)", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Subject is one marked subject in a submission body.
type Subject struct {
	Name string `json:"name"`
	Mark int    `json:"mark"`
}

// Submission is the body posted to /evaluations.
type Submission struct {
	RequestID  string    `json:"request_id"`
	Subjects   []Subject `json:"subjects"`
	ProgramIDs []string  `json:"program_ids,omitempty"`
}

// SubmitResponse represents the response from a submission.
type SubmitResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Evaluation is the subset of a stored evaluation the run inspects.
type Evaluation struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Error    string `json:"error"`
	Programs []struct {
		ProgramID string `json:"program_id"`
		Eligible  bool   `json:"eligible"`
	} `json:"programs"`
}

// Stats holds run statistics.
type Stats struct {
	ProfilesGenerated int
	Submitted         int
	Accepted          int
	Duplicates        int
	Backpressured     int
	Failed            int
	Completed         int
	EvaluationsFailed int
	StillPending      int
	EligiblePrograms  int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
