package loadgen

import "time"

// Submission outcomes.
const (
	outcomeAccepted     = "accepted"
	outcomeDuplicate    = "duplicate"
	outcomeBackpressure = "backpressure"
	outcomeFailed       = "failed"
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	DefaultPollInterval  = 250 * time.Millisecond
	DefaultPollTimeout   = 2 * time.Minute
	PercentageMultiplier = 100
)
