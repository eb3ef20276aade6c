package loadgen

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/postflow/internal/adapters/http/api"
	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/internal/domain/rewards"
	"github.com/okian/postflow/pkg/logger"
)

// Image and tag ranges.
const (
	minSide      = 16
	sideRange    = 48
	maxTags      = 3
	parkChance   = 3 // one in parkChance posts carries a park location
	tokenTTL     = time.Hour
	fillerTagMax = 1000
)

// randInt returns a uniform int in [0, n) using crypto/rand.
func randInt(n int) int {
	if n <= 0 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateSubmissions builds PostsPerUser submissions for each of Users
// fresh authors, ordered so each author's attempts are adjacent.
func generateSubmissions(ctx context.Context, config *Config, stats *Stats) ([]Submission, error) {
	logger.Get().Info(ctx, "generating submissions",
		logger.Int("users", config.Users),
		logger.Int("postsPerUser", config.PostsPerUser))

	auth := api.NewAuthenticator(config.JWTSecret, config.JWTIssuer)
	all := rewards.Subjects()
	var parks []rewards.Subject
	for _, s := range all {
		if s.Category == rewards.CategoryPark {
			parks = append(parks, s)
		}
	}

	subs := make([]Submission, 0, config.Users*config.PostsPerUser)
	for u := 0; u < config.Users; u++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		userID := uuid.NewString()
		token, err := auth.Mint(&model.Identity{UserID: userID, DisplayName: "loadgen " + userID[:8]}, tokenTTL)
		if err != nil {
			return nil, fmt.Errorf("mint token: %w", err)
		}
		for p := 0; p < config.PostsPerUser; p++ {
			sub := Submission{
				UserID: userID,
				Token:  token,
				Title:  "loadgen post " + strconv.Itoa(p),
				Tags:   randomTags(all),
			}
			if len(parks) > 0 && randInt(parkChance) == 0 {
				sub.Location = parks[randInt(len(parks))].Name
			}
			for a := 0; a < config.AssetsPerPost; a++ {
				img, err := randomPNG()
				if err != nil {
					return nil, fmt.Errorf("encode image: %w", err)
				}
				sub.Images = append(sub.Images, img)
			}
			subs = append(subs, sub)
		}
	}

	stats.Generated = len(subs)
	logger.Get().Info(ctx, "generated submissions", logger.Int("count", len(subs)))
	return subs, nil
}

// randomTags mixes known subject keys with a filler tag that matches nothing.
func randomTags(all []rewards.Subject) []string {
	n := 1 + randInt(maxTags)
	tags := make([]string, 0, n+1)
	for i := 0; i < n && len(all) > 0; i++ {
		tags = append(tags, string(all[randInt(len(all))].Key))
	}
	return append(tags, "filler"+strconv.Itoa(randInt(fillerTagMax)))
}

// randomPNG encodes a solid image of random dimensions.
func randomPNG() ([]byte, error) {
	w, h := minSide+randInt(sideRange), minSide+randInt(sideRange)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := color.RGBA{R: uint8(randInt(256)), G: uint8(randInt(256)), B: uint8(randInt(256)), A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// expectedSubjects is the set of badge subjects a user's published posts reference.
func expectedSubjects(subs []*Submission) map[rewards.SubjectKey]bool {
	out := make(map[rewards.SubjectKey]bool)
	for _, s := range subs {
		for _, subj := range rewards.ExtractSubjects(s.Tags, s.Location) {
			out[subj.Key] = true
		}
	}
	return out
}
