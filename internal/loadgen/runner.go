package loadgen

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/postflow/pkg/logger"
)

// Run executes the complete load run.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting postflow load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.Users),
		logger.Int("postsPerUser", config.PostsPerUser),
		logger.Int("assetsPerPost", config.AssetsPerPost),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate submissions
	subs, err := generateSubmissions(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("submission generation failed: %w", err)
	}

	// Step 3: Publish concurrently
	outcomes := submitPosts(ctx, config, subs, stats)

	// Step 4: Let best-effort writes land before reading back
	select {
	case <-ctx.Done():
		return stats, ctx.Err()
	case <-time.After(SettleDelay):
	}

	// Step 5: Verify results
	verifyErr := verifyResults(ctx, config, outcomes, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if verifyErr != nil {
		return stats, fmt.Errorf("result verification failed: %w", verifyErr)
	}
	logger.Get().Info(ctx, "load run completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz", "")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(stats *Stats) {
	var successRate, postsPerSecond float64

	if stats.Submitted > 0 {
		successRate = float64(stats.Published) / float64(stats.Submitted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		postsPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("published", stats.Published),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Int("failed", stats.Failed),
		logger.Int("verified", stats.Verified),
		logger.Int("verifyFailed", stats.VerifyFailed),
		logger.Int("badgesAwarded", stats.BadgesAwarded),
		logger.Int("badgeMismatch", stats.BadgeMismatch),
		logger.Int("cooldownBreach", stats.CooldownBreach),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("postsPerSecond", postsPerSecond))
}
