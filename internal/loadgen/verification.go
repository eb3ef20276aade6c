package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/internal/domain/rewards"
	"github.com/okian/postflow/pkg/logger"
)

// ErrVerification is returned when the service state disagrees with what was published.
var ErrVerification = errors.New("verification failed")

type postView struct {
	ID     string           `json:"id"`
	Title  string           `json:"title"`
	Status model.PostStatus `json:"status"`
	Assets []model.Asset    `json:"assets"`
}

type badgesView struct {
	Badges []model.Badge `json:"badges"`
}

// verifyResults reads every published post back and compares each author's
// badges with the subjects their published posts referenced.
func verifyResults(ctx context.Context, config *Config, outcomes []Outcome, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "verifying results")

	client := newHTTPClient(config.Timeout)
	byUser := make(map[string][]*Submission)
	tokens := make(map[string]string)
	var published []Outcome
	for _, o := range outcomes {
		if o.Submission == nil {
			continue
		}
		tokens[o.Submission.UserID] = o.Submission.Token
		if o.Status == http.StatusCreated {
			published = append(published, o)
			byUser[o.Submission.UserID] = append(byUser[o.Submission.UserID], o.Submission)
			stats.BadgesAwarded += o.Badges
		}
	}
	for _, subs := range byUser {
		if len(subs) > 1 {
			stats.CooldownBreach++
		}
	}

	var verified, verifyFailed, mismatched int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)

	for _, o := range published {
		g.Go(func() error {
			if err := verifyPost(ctx, client, config, o); err != nil {
				atomic.AddInt64(&verifyFailed, 1)
				if config.Verbose {
					log.Warn(ctx, "post verification failed", logger.String("postId", o.PostID), logger.Error(err))
				}
				return nil
			}
			atomic.AddInt64(&verified, 1)
			return nil
		})
	}
	for userID, subs := range byUser {
		g.Go(func() error {
			if err := verifyBadges(ctx, client, config.BaseURL, tokens[userID], subs); err != nil {
				atomic.AddInt64(&mismatched, 1)
				if config.Verbose {
					log.Warn(ctx, "badge verification failed", logger.String("userId", userID), logger.Error(err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Verified = int(verified)
	stats.VerifyFailed = int(verifyFailed)
	stats.BadgeMismatch = int(mismatched)

	if stats.VerifyFailed > 0 || stats.BadgeMismatch > 0 {
		return fmt.Errorf("%w: %d posts unreadable, %d users with unexpected badges",
			ErrVerification, stats.VerifyFailed, stats.BadgeMismatch)
	}
	log.Info(ctx, "result verification completed", logger.Int("verified", stats.Verified))
	return nil
}

func verifyPost(ctx context.Context, client *HTTPClient, config *Config, o Outcome) error {
	resp, err := client.Get(ctx, config.BaseURL+"/posts/"+o.PostID, "")
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	var p postView
	if err := decodeBody(resp, &p); err != nil {
		return fmt.Errorf("decode post: %w", err)
	}
	switch {
	case p.ID != o.PostID:
		return fmt.Errorf("id %q, want %q", p.ID, o.PostID)
	case p.Title != o.Submission.Title:
		return fmt.Errorf("title %q, want %q", p.Title, o.Submission.Title)
	case p.Status != model.StatusPublished:
		return fmt.Errorf("status %q", p.Status)
	case len(p.Assets) != len(o.Submission.Images):
		return fmt.Errorf("%d assets, want %d", len(p.Assets), len(o.Submission.Images))
	}
	for _, a := range p.Assets {
		if a.Width == 0 || a.Height == 0 {
			return fmt.Errorf("asset %d has no dimensions", a.Index)
		}
	}
	return nil
}

func verifyBadges(ctx context.Context, client *HTTPClient, baseURL, token string, subs []*Submission) error {
	resp, err := client.Get(ctx, baseURL+"/me/badges", token)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	var view badgesView
	if err := decodeBody(resp, &view); err != nil {
		return fmt.Errorf("decode badges: %w", err)
	}

	want := expectedSubjects(subs)
	if len(view.Badges) != len(want) {
		return fmt.Errorf("%d badges, want %d", len(view.Badges), len(want))
	}
	for _, b := range view.Badges {
		if !want[rewards.SubjectKey(b.Subject)] {
			return fmt.Errorf("unexpected badge %q", b.Subject)
		}
	}
	return nil
}
