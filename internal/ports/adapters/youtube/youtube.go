// Package youtube searches videos through the YouTube Data API v3.
package youtube

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/forPelevin/pinpoint/internal/types"
)

// maxPageSize is the API's per-call limit for search.list and videos.list.
const maxPageSize = 50

type Adapter struct {
	svc     *yt.Service
	limiter *rate.Limiter
}

// New builds a searcher. Extra options (endpoint, HTTP client) are appended
// after the API key.
func New(ctx context.Context, apiKey string, qps float64, opts ...option.ClientOption) (*Adapter, error) {
	svc, err := yt.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	if qps <= 0 {
		qps = 5
	}
	return &Adapter{svc: svc, limiter: rate.NewLimiter(rate.Limit(qps), 1)}, nil
}

// Search over-fetches twice the requested count so duration filtering
// downstream still leaves enough videos.
func (a *Adapter) Search(ctx context.Context, req types.SearchRequest) ([]types.VideoMetadata, error) {
	n := 2 * req.MaxResults
	if n <= 0 || n > maxPageSize {
		n = maxPageSize
	}

	call := a.svc.Search.List([]string{"id"}).
		Q(req.Query).
		Type("video").
		MaxResults(int64(n)).
		Order(string(req.Order))
	if !req.PublishedAfter.IsZero() {
		call = call.PublishedAfter(req.PublishedAfter.UTC().Format(time.RFC3339))
	}
	if !req.PublishedBefore.IsZero() {
		call = call.PublishedBefore(req.PublishedBefore.UTC().Format(time.RFC3339))
	}
	if req.RelevanceLanguage != "" {
		call = call.RelevanceLanguage(req.RelevanceLanguage)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: search.list %q: %v", types.ErrSearchUnavailable, req.Query, err)
	}

	ids := make([]string, 0, len(res.Items))
	for _, it := range res.Items {
		if it.Id != nil && it.Id.VideoId != "" {
			ids = append(ids, it.Id.VideoId)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return a.details(ctx, ids)
}

// details resolves durations and snippets, keeping the search order.
// Live and upcoming broadcasts are dropped.
func (a *Adapter) details(ctx context.Context, ids []string) ([]types.VideoMetadata, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := a.svc.Videos.List([]string{"snippet", "contentDetails"}).Id(ids...).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: videos.list: %v", types.ErrSearchUnavailable, err)
	}

	byID := make(map[string]*yt.Video, len(res.Items))
	for _, v := range res.Items {
		byID[v.Id] = v
	}
	out := make([]types.VideoMetadata, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok || v.Snippet == nil || v.ContentDetails == nil {
			continue
		}
		if lb := v.Snippet.LiveBroadcastContent; lb == "live" || lb == "upcoming" {
			continue
		}
		dur, err := ParseDuration(v.ContentDetails.Duration)
		if err != nil {
			continue
		}
		published, _ := time.Parse(time.RFC3339, v.Snippet.PublishedAt)
		out = append(out, types.VideoMetadata{
			VideoID:      id,
			Title:        v.Snippet.Title,
			ChannelName:  v.Snippet.ChannelTitle,
			DurationSec:  dur,
			PublishedAt:  published,
			ThumbnailURL: thumbnail(v.Snippet.Thumbnails),
		})
	}
	return out, nil
}

func thumbnail(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

var reISODuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseDuration converts an ISO 8601 duration such as PT1H2M3S to seconds.
func ParseDuration(s string) (int, error) {
	m := reISODuration.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid ISO 8601 duration %q", s)
	}
	total := 0
	for i, unit := range []int{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid ISO 8601 duration %q: %w", s, err)
		}
		total += v * unit
	}
	return total, nil
}
