package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/postflow/internal/domain/types"
	"github.com/okian/postflow/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request, authenticated when token is set.
func (c *HTTPClient) Get(ctx context.Context, url, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.client.Do(req)
}

// PostForm sends sub as the multipart publish form.
func (c *HTTPClient) PostForm(ctx context.Context, url string, sub *Submission) (*http.Response, error) {
	body, contentType, err := encodeSubmission(sub)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+sub.Token)
	return c.client.Do(req)
}

func encodeSubmission(sub *Submission) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"title":    sub.Title,
		"tags":     strings.Join(sub.Tags, ","),
		"location": sub.Location,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write %s: %w", k, err)
		}
	}
	for i, img := range sub.Images {
		fw, err := mw.CreateFormFile("asset"+strconv.Itoa(i), "image"+strconv.Itoa(i)+".png")
		if err != nil {
			return nil, "", fmt.Errorf("create asset%d: %w", i, err)
		}
		if _, err := fw.Write(img); err != nil {
			return nil, "", fmt.Errorf("write asset%d: %w", i, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// decodeBody reads, decodes and closes the response body.
func decodeBody(resp *http.Response, v any) error {
	defer func() { _ = resp.Body.Close() }()
	return json.NewDecoder(resp.Body).Decode(v)
}

// submitPosts publishes every submission using a worker pool. Each author's
// attempts go to the same worker so they arrive in order.
func submitPosts(ctx context.Context, config *Config, subs []Submission, stats *Stats) []Outcome {
	log := logger.Get()
	log.Info(ctx, "submitting posts", logger.Int("count", len(subs)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/posts"
	outcomes := make([]Outcome, len(subs))

	var submitted, published, limited, failed int64

	lanes := make([]chan int, config.Workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan int, WorkerChannelBuffer)
		wg.Add(1)
		go func(lane <-chan int) {
			defer wg.Done()
			for idx := range lane {
				if ctx.Err() != nil {
					continue
				}
				out := submitSingle(ctx, client, url, &subs[idx])
				outcomes[idx] = out
				atomic.AddInt64(&submitted, 1)
				switch {
				case out.Status == http.StatusCreated:
					atomic.AddInt64(&published, 1)
				case out.Status == http.StatusTooManyRequests:
					atomic.AddInt64(&limited, 1)
				default:
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Warn(ctx, "publish failed",
							logger.String("userId", out.Submission.UserID),
							logger.Int("status", out.Status),
							logger.Error(out.Err))
					}
				}
			}
		}(lanes[i])
	}

	laneOf := make(map[string]int)
	for idx := range subs {
		l, ok := laneOf[subs[idx].UserID]
		if !ok {
			l = len(laneOf) % len(lanes)
			laneOf[subs[idx].UserID] = l
		}
		select {
		case <-ctx.Done():
		case lanes[l] <- idx:
		}
	}
	for _, l := range lanes {
		close(l)
	}
	wg.Wait()

	stats.Submitted = int(submitted)
	stats.Published = int(published)
	stats.RateLimited = int(limited)
	stats.Failed = int(failed)
	log.Info(ctx, "submission completed",
		logger.Int("published", stats.Published),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Int("failed", stats.Failed))
	return outcomes
}

// submitSingle publishes one submission and records how it was answered.
func submitSingle(ctx context.Context, client *HTTPClient, url string, sub *Submission) Outcome {
	out := Outcome{Submission: sub}
	resp, err := client.PostForm(ctx, url, sub)
	if err != nil {
		out.Err = err
		return out
	}
	out.Status = resp.StatusCode

	if resp.StatusCode != http.StatusCreated {
		var body types.ErrorBody
		if err := decodeBody(resp, &body); err != nil {
			out.Err = fmt.Errorf("status %d", resp.StatusCode)
		} else {
			out.Err = fmt.Errorf("%s: %s", body.Code, body.Message)
		}
		return out
	}

	var res types.PublishResult
	if err := decodeBody(resp, &res); err != nil {
		out.Err = fmt.Errorf("decode result: %w", err)
		return out
	}
	out.PostID = res.PostID
	out.Badges = len(res.AwardedBadges)
	return out
}
