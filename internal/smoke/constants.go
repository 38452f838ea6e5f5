package smoke

import "time"

// Defaults applied to zero Config fields.
const (
	DefaultTopN    = 100
	DefaultWorkers = 4
	DefaultTimeout = 2 * time.Minute
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Expected home win probabilities lie strictly inside (0, 1).
const (
	minProbability = 0.0
	maxProbability = 1.0
)
