package loadgen

import "time"

// Worker configuration constants.
const (
	WorkerChannelBuffer = 16
)

// Runner configuration constants.
const (
	SettleDelay          = 2 * time.Second
	PercentageMultiplier = 100
)
