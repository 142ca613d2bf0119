package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/pinpoint/internal/domain/segments"
	"github.com/forPelevin/pinpoint/internal/types"
)

const defaultRecentWindow = 30 * 24 * time.Hour

type strategy struct {
	name   string
	order  types.SearchOrder
	recent bool
}

var strategies = []strategy{
	{name: "relevance", order: types.OrderRelevance},
	{name: "date", order: types.OrderDate},
	{name: "recent_relevance", order: types.OrderRelevance, recent: true},
}

type lookup struct {
	query    string
	strategy strategy
	videos   []types.VideoMetadata
	err      error
}

// searchVideos runs every query under every strategy, then merges in
// query-major, strategy-minor order so the first occurrence of a video wins.
// It fails only when every lookup failed.
func (u Usecase) searchVideos(ctx context.Context, in Input, queries []string) ([]types.VideoMetadata, map[string]int, error) {
	if len(queries) == 0 {
		queries = []string{in.Query}
	}
	perLookup := in.MaxSearchResults / len(queries)
	if perLookup < 1 {
		perLookup = 1
	}

	lookups := make([]lookup, 0, len(queries)*len(strategies))
	for _, q := range queries {
		for _, s := range strategies {
			lookups = append(lookups, lookup{query: q, strategy: s})
		}
	}

	var g errgroup.Group
	g.SetLimit(in.workers())
	for i := range lookups {
		l := &lookups[i]
		g.Go(func() error {
			cctx, cancel := withTimeout(ctx, in.SearchTimeout)
			defer cancel()
			l.videos, l.err = u.d.Search.Search(cctx, u.searchRequest(in, l.query, l.strategy, perLookup))
			return nil
		})
	}
	_ = g.Wait()

	batches := make([][]types.VideoMetadata, 0, len(lookups))
	stats := make(map[string]int, len(strategies))
	failed := 0
	for _, l := range lookups {
		if l.err != nil {
			failed++
			in.logf("search %q (%s) failed: %v", l.query, l.strategy.name, l.err)
			continue
		}
		stats[l.strategy.name] += len(l.videos)
		batches = append(batches, l.videos)
	}
	if failed == len(lookups) {
		return nil, nil, fmt.Errorf("%w: all %d lookups failed", types.ErrSearchUnavailable, failed)
	}

	videos := segments.DedupeVideos(batches...)
	unique := len(videos)
	videos = segments.FilterDuration(videos, in.DurationMinSec, in.DurationMaxSec)
	filtered := len(videos)
	if in.MaxSearchResults > 0 && len(videos) > in.MaxSearchResults {
		videos = videos[:in.MaxSearchResults]
	}
	in.logf("search: %d unique videos, %d after duration filter, %d kept (stats %v, %d failed lookups)",
		unique, filtered, len(videos), stats, failed)
	return videos, stats, nil
}

func (u Usecase) searchRequest(in Input, q string, s strategy, maxResults int) types.SearchRequest {
	req := types.SearchRequest{
		Query:           q,
		Order:           s.order,
		MaxResults:      maxResults,
		PublishedAfter:  in.PublishedAfter,
		PublishedBefore: in.PublishedBefore,

		RelevanceLanguage: in.RelevanceLanguage,
	}
	if s.recent {
		window := in.RecentWindow
		if window <= 0 {
			window = defaultRecentWindow
		}
		if since := u.d.Now().Add(-window); since.After(req.PublishedAfter) {
			req.PublishedAfter = since
		}
	}
	return req
}
