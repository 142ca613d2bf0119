// Package rediscache memoizes transcript lookups in Redis. Cache errors are
// logged and never fail a lookup.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forPelevin/pinpoint/internal/ports"
	"github.com/forPelevin/pinpoint/internal/types"
)

const (
	keyPrefix = "pinpoint:transcript:v1:"
	// missing marks a video known to have no transcript.
	missing = "-"
)

type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type Transcripts struct {
	next       ports.TranscriptSource
	rdb        store
	ttl        time.Duration
	missingTTL time.Duration
	logf       func(format string, args ...any)
}

// Dial parses a redis:// URL and checks the server is reachable.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// NewTranscripts wraps next. Videos without a transcript are remembered for
// missingTTL so they are not re-fetched on every run.
func NewTranscripts(next ports.TranscriptSource, rdb *redis.Client, ttl, missingTTL time.Duration, logf func(string, ...any)) *Transcripts {
	return newTranscripts(next, rdb, ttl, missingTTL, logf)
}

func newTranscripts(next ports.TranscriptSource, rdb store, ttl, missingTTL time.Duration, logf func(string, ...any)) *Transcripts {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Transcripts{next: next, rdb: rdb, ttl: ttl, missingTTL: missingTTL, logf: logf}
}

func (c *Transcripts) Fetch(ctx context.Context, videoID string, languages []string) (types.Transcript, error) {
	key := keyPrefix + videoID + ":" + strings.Join(languages, ",")

	b, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil && string(b) == missing:
		return types.Transcript{}, types.ErrTranscriptUnavailable
	case err == nil:
		var tr types.Transcript
		if uerr := json.Unmarshal(b, &tr); uerr == nil {
			return tr, nil
		}
		c.logf("transcript cache: corrupt entry %s, refetching", key)
	case !errors.Is(err, redis.Nil):
		c.logf("transcript cache get %s: %v", key, err)
	}

	tr, err := c.next.Fetch(ctx, videoID, languages)
	switch {
	case errors.Is(err, types.ErrTranscriptUnavailable):
		if c.missingTTL > 0 {
			c.set(ctx, key, missing, c.missingTTL)
		}
		return tr, err
	case err != nil:
		return tr, err
	}

	if b, merr := json.Marshal(tr); merr == nil {
		c.set(ctx, key, b, c.ttl)
	}
	return tr, nil
}

func (c *Transcripts) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, v, ttl).Err(); err != nil {
		c.logf("transcript cache set %s: %v", key, err)
	}
}
