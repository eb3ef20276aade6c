package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/postflow/internal/loadgen"
)

// Default configuration constants.
const (
	defaultUsers         = 100
	defaultPostsPerUser  = 2
	defaultAssetsPerPost = 2
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users   = flag.Int("users", defaultUsers, "Number of distinct authors")
		posts   = flag.Int("posts", defaultPostsPerUser, "Publish attempts per author")
		assets  = flag.Int("assets", defaultAssetsPerPost, "Images per post")
		workers = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		secret  = flag.String("secret", os.Getenv("POSTFLOW_JWT_SECRET"), "JWT secret shared with the service")
		issuer  = flag.String("issuer", "postflow", "JWT issuer expected by the service")
		logFile = flag.String("log", "", "Log file for run output (default: publish_load_TIMESTAMP.log)")
		verbose = flag.Bool("verbose", false, "Log every failed request")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	if *secret == "" || *users <= 0 || *posts <= 0 || *assets <= 0 || *workers <= 0 {
		os.Stderr.WriteString("secret must be set and users, posts, assets and workers must be positive\n")
		os.Exit(2)
	}

	if err := loadgen.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &loadgen.Config{
		BaseURL:       *baseURL,
		Users:         *users,
		PostsPerUser:  *posts,
		AssetsPerPost: *assets,
		Workers:       *workers,
		Timeout:       *timeout,
		JWTSecret:     *secret,
		JWTIssuer:     *issuer,
		LogFile:       *logFile,
		Verbose:       *verbose,
	}

	if _, err := loadgen.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Run failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
