// Package loadgen drives concurrent publishes against a running service and
// checks what the service reports afterwards.
package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Users         int           // Number of distinct authors
	PostsPerUser  int           // Publish attempts per author
	AssetsPerPost int           // Images per post
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	JWTSecret     string        // Secret the service verifies tokens with
	JWTIssuer     string        // Issuer the service expects
	LogFile       string        // Log file for run output
	Verbose       bool          // Log every failed request
}

// Submission is one publish attempt.
type Submission struct {
	UserID   string
	Token    string
	Title    string
	Tags     []string
	Location string
	Images   [][]byte
}

// Outcome is how the service answered a Submission.
type Outcome struct {
	Submission *Submission
	Status     int
	PostID     string
	Badges     int
	Err        error
}

// Stats holds run statistics.
type Stats struct {
	Generated      int
	Submitted      int
	Published      int
	RateLimited    int
	Failed         int
	Verified       int
	VerifyFailed   int
	BadgesAwarded  int
	BadgeMismatch  int
	CooldownBreach int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
