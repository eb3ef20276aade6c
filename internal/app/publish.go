package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/internal/domain/pricing"
	"github.com/okian/postflow/internal/domain/publication"
	"github.com/okian/postflow/internal/domain/ratelimit"
	"github.com/okian/postflow/internal/domain/rewards"
	"github.com/okian/postflow/internal/domain/types"
	"github.com/okian/postflow/internal/domain/upload"
	"github.com/okian/postflow/pkg/logger"
	"github.com/okian/postflow/pkg/metrics"
	"github.com/okian/postflow/pkg/tracing"
)

// AssetInput is one submitted asset: a binary image or an inline text slide.
type AssetInput struct {
	Name        string
	ContentType string
	// Body is the image binary. Nil for text slides.
	Body       io.Reader
	Text       string
	Caption    string
	Sellable   bool
	Tier       string
	Stickers   bool
	ManualExif *model.ExifMetadata
}

// PublishRequest is a submission as received from the caller.
type PublishRequest struct {
	Title        string
	Tags         []string
	Location     string
	CollectionID string
	// Status is "draft" or "published"; empty means published.
	Status string
	Assets []AssetInput
	// OnProgress, if set, receives aggregate upload progress.
	OnProgress func(upload.Snapshot)
}

type stagedAsset struct {
	in   AssetInput
	kind model.AssetKind
	data []byte
}

// Publish runs the pipeline: authenticate, reserve the rate limit, validate,
// upload every binary concurrently, extract metadata, run the publication
// transaction and enqueue the post event. Surfaced failures are *PublishError.
func (s *Service) Publish(ctx context.Context, id *model.Identity, req PublishRequest) (result types.PublishResult, err error) {
	const op = "service.publish"

	start := time.Now()
	ctx, span := tracing.Start(ctx, "publish")
	defer func() {
		err = classify(err)
		tracing.End(span, err)
		metrics.RecordPublish(outcome(err))
		metrics.RecordPublishLatency(sinceMS(start))
	}()

	p, err := s.pipeline()
	if err != nil {
		return result, fmt.Errorf("%s: %w", op, err)
	}
	if id == nil || id.UserID == "" {
		return result, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	ctx = logger.WithUserID(ctx, id.UserID)
	span.SetAttributes(attribute.String("user.id", id.UserID), attribute.Int("assets", len(req.Assets)))

	err = s.stage(ctx, "ratelimit", func(ctx context.Context) error {
		return p.limiter.Reserve(ctx, id.UserID)
	})
	if err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			metrics.RecordRateLimitRejected()
		}
		return result, fmt.Errorf("%s: %w", op, err)
	}

	status, staged, err := s.validate(req)
	if err != nil {
		return result, fmt.Errorf("%s: %w", op, err)
	}

	var refs []upload.Ref
	err = s.stage(ctx, "upload", func(ctx context.Context) (serr error) {
		refs, serr = s.uploadAll(ctx, p, id.UserID, staged, req.OnProgress)
		return serr
	})
	if err != nil {
		return result, fmt.Errorf("%s: %w", op, err)
	}

	var (
		assets        []model.Asset
		metadataFails int
	)
	_ = s.stage(ctx, "metadata", func(ctx context.Context) error {
		assets, metadataFails = s.describe(ctx, p, staged, refs)
		return nil
	})

	var pub publication.Result
	err = s.stage(ctx, "publication", func(ctx context.Context) (serr error) {
		pub, serr = p.posts.Publish(ctx, publication.Request{
			Identity:       id,
			Title:          strings.TrimSpace(req.Title),
			Tags:           req.Tags,
			Location:       strings.TrimSpace(req.Location),
			CollectionID:   req.CollectionID,
			Status:         status,
			PremiumCreator: id.Premium,
			Assets:         assets,
		})
		return serr
	})
	if err != nil {
		if errors.Is(err, publication.ErrVerificationFailed) {
			s.discard(ctx, p, refs)
		}
		return result, fmt.Errorf("%s: %w", op, err)
	}

	s.emit(ctx, p, pub.Post)

	result = types.PublishResult{
		PostID:          pub.Post.ID,
		Status:          pub.Post.Status,
		AwardedBadges:   types.NewAwardedBadges(pub.Rewards.Badges),
		BonusPoints:     pub.Rewards.BonusPoints,
		Rewards:         types.NewIssuedRewards(pub.Rewards.Rewards),
		CommerceItemIDs: pub.CommerceItemIDs,
	}
	if metadataFails > 0 {
		result.Degraded = append(result.Degraded, "metadata")
	}
	for _, d := range pub.Degraded {
		result.Degraded = append(result.Degraded, string(d.Step))
	}

	s.logger.Info(ctx, "post published",
		logger.String("post_id", result.PostID),
		logger.String("status", string(result.Status)),
		logger.Int("badges", len(result.AwardedBadges)),
		logger.Int64("bonus_points", result.BonusPoints),
		logger.Int("degraded", len(result.Degraded)),
	)
	return result, nil
}

// stage runs fn under its own span and records its latency.
func (s *Service) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "publish."+name)
	err := fn(ctx)
	tracing.End(span, err)
	metrics.RecordStageLatency(name, sinceMS(start))
	return err
}

// validate checks the shape of req and buffers every binary in memory.
func (s *Service) validate(req PublishRequest) (model.PostStatus, []stagedAsset, error) {
	status, ok := model.ParseStatus(req.Status)
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, req.Status)
	}
	switch n := len(req.Assets); {
	case n == 0:
		return "", nil, fmt.Errorf("%w: at least one asset is required", ErrInvalidRequest)
	case n > s.maxAssets:
		return "", nil, fmt.Errorf("%w: %d assets exceeds the limit of %d", ErrInvalidRequest, n, s.maxAssets)
	}

	staged := make([]stagedAsset, len(req.Assets))
	for i, a := range req.Assets {
		st := stagedAsset{in: a}
		switch {
		case a.Body != nil:
			data, err := io.ReadAll(io.LimitReader(a.Body, s.maxUploadBytes+1))
			if err != nil {
				return "", nil, fmt.Errorf("%w: asset %d: %v", ErrInvalidRequest, i, err)
			}
			if len(data) == 0 {
				return "", nil, fmt.Errorf("%w: asset %d is empty", ErrInvalidRequest, i)
			}
			if int64(len(data)) > s.maxUploadBytes {
				return "", nil, fmt.Errorf("%w: asset %d exceeds %d bytes", ErrInvalidRequest, i, s.maxUploadBytes)
			}
			st.kind = model.AssetImage
			st.data = data
			if st.in.ContentType == "" {
				st.in.ContentType = http.DetectContentType(data)
			}
		case strings.TrimSpace(a.Text) != "":
			st.kind = model.AssetText
		default:
			return "", nil, fmt.Errorf("%w: asset %d has neither an image nor text", ErrInvalidRequest, i)
		}

		if a.Sellable {
			if st.kind != model.AssetImage {
				return "", nil, fmt.Errorf("%w: asset %d: text slides cannot be sold", ErrInvalidRequest, i)
			}
			if _, ok := pricing.ParseTier(strings.ToLower(a.Tier)); !ok {
				return "", nil, fmt.Errorf("%w: asset %d: unknown tier %q", ErrInvalidRequest, i, a.Tier)
			}
			st.in.Tier = strings.ToLower(a.Tier)
		}
		staged[i] = st
	}
	return status, staged, nil
}

// uploadAll fans the binaries out concurrently. The first failure cancels the
// rest and every object already stored is removed.
func (s *Service) uploadAll(ctx context.Context, p *pipeline, userID string, staged []stagedAsset, notify func(upload.Snapshot)) ([]upload.Ref, error) {
	sizes := make([]int64, len(staged))
	for i := range staged {
		sizes[i] = int64(len(staged[i].data))
	}
	progress := upload.NewProgress(sizes, notify)
	refs := make([]upload.Ref, len(staged))

	g, gctx := errgroup.WithContext(ctx)
	for i := range staged {
		if staged[i].kind != model.AssetImage {
			progress.Complete(i)
			continue
		}
		g.Go(func() error {
			a := staged[i]
			ref, err := p.uploader.Upload(gctx, upload.Input{
				UserID:      userID,
				Index:       i,
				Name:        a.in.Name,
				ContentType: a.in.ContentType,
				Body:        bytes.NewReader(a.data),
				Size:        int64(len(a.data)),
			}, progress.Track(i))
			if err != nil {
				return err
			}
			refs[i] = ref
			progress.Complete(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.discard(ctx, p, refs)
		if !errors.Is(err, upload.ErrUploadFailed) {
			err = fmt.Errorf("%w: %w", upload.ErrUploadFailed, err)
		}
		return nil, err
	}
	return refs, nil
}

// describe builds the post assets, extracting metadata for every image.
// It returns how many images had a metadata failure.
func (s *Service) describe(ctx context.Context, p *pipeline, staged []stagedAsset, refs []upload.Ref) ([]model.Asset, int) {
	assets := make([]model.Asset, len(staged))
	var fails int
	for i := range staged {
		a := staged[i]
		asset := model.Asset{
			Index:    i,
			Kind:     a.kind,
			Caption:  a.in.Caption,
			Sellable: a.in.Sellable,
			Tier:     a.in.Tier,
			Stickers: a.in.Stickers,
		}
		if a.kind == model.AssetText {
			asset.Text = a.in.Text
			assets[i] = asset
			continue
		}

		asset.URL = refs[i].URL
		asset.Path = refs[i].Path
		md := p.extractor.Extract(ctx, a.data, asset.URL, a.in.ManualExif)
		asset.Exif = md.Exif
		if md.Dimensions != nil {
			asset.Width = md.Dimensions.Width
			asset.Height = md.Dimensions.Height
			asset.AspectRatio = md.Dimensions.AspectRatio
		}
		if md.Err != nil {
			fails++
			metrics.RecordDegradedStep("metadata")
		}
		assets[i] = asset
	}
	return assets, fails
}

// discard removes uploaded objects that no post will reference.
func (s *Service) discard(ctx context.Context, p *pipeline, refs []upload.Ref) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range refs {
		if r.URL == "" {
			continue
		}
		if err := p.objects.Delete(ctx, r.URL); err != nil {
			s.logger.Warn(ctx, "orphaned asset not removed", logger.String("url", r.URL), logger.Error(err))
		}
	}
}

// emit enqueues the published event. A full queue drops it.
func (s *Service) emit(ctx context.Context, p *pipeline, post *model.Post) {
	if post.Status != model.StatusPublished {
		return
	}
	ev := model.PostPublishedEvent{
		PostID:    post.ID,
		AuthorID:  post.AuthorID,
		Status:    post.Status,
		Title:     post.Title,
		Tags:      post.Tags,
		Keywords:  post.SearchKeywords,
		AssetURLs: post.AssetURLs(),
		At:        post.UpdatedAt,
	}
	if !p.queue.Enqueue(ctx, ev) {
		s.logger.Warn(ctx, "post event dropped", logger.String("post_id", post.ID))
		return
	}
	metrics.UpdateQueueSize(p.queue.Len(ctx))
}

// tracedAwarder reports the reward step as its own pipeline stage.
type tracedAwarder struct {
	svc    *Service
	engine *rewards.Engine
}

func (a tracedAwarder) AwardForPost(ctx context.Context, post *model.Post) (res rewards.Result, err error) {
	err = a.svc.stage(ctx, "rewards", func(ctx context.Context) (serr error) {
		res, serr = a.engine.AwardForPost(ctx, post)
		return serr
	})
	return res, err
}

func sinceMS(t time.Time) float64 {
	return float64(time.Since(t).Nanoseconds()) / 1e6
}
