package pipeline

import (
	"context"
	"errors"
	"net/url"

	"github.com/forPelevin/pinpoint/internal/ports"
	"github.com/forPelevin/pinpoint/internal/ports/adapters/endpoint"
	"github.com/forPelevin/pinpoint/internal/ports/adapters/openai"
	"github.com/forPelevin/pinpoint/internal/ports/adapters/openrouter"
	"github.com/forPelevin/pinpoint/internal/types"
)

// transcriptChain returns the first non-empty transcript among its sources.
type transcriptChain []ports.TranscriptSource

func (c transcriptChain) Fetch(ctx context.Context, videoID string, languages []string) (types.Transcript, error) {
	var errs []error
	for _, s := range c {
		tr, err := s.Fetch(ctx, videoID, languages)
		if err == nil && !tr.Empty() {
			return tr, nil
		}
		if err == nil {
			err = types.ErrTranscriptUnavailable
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return types.Transcript{}, errors.Join(errs...)
}

func withAllowed(p endpoint.Policy, allowed []string) endpoint.Policy {
	p.AllowedHosts = allowed
	return p
}

func normalizedOpenAIURL(s string) string {
	return endpoint.Normalize(s, openai.DefaultBaseURL)
}

func normalizedOpenRouterURL(s string) string {
	return endpoint.Normalize(s, openrouter.DefaultBaseURL)
}

func redactURL(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return "[unparseable]"
	}
	return u.Redacted()
}
