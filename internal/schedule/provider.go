package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/solstudio/ig-agent-go/internal/config"
)

// Slot is one bookable session in the upcoming schedule.
type Slot struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Title     string `json:"title"`
	SpotsLeft int    `json:"spots_left"`
}

// Provider returns the upcoming session schedule.
type Provider interface {
	Upcoming(ctx context.Context) ([]Slot, error)
}

// FeedProvider reads the schedule from an HTTP JSON feed. A failed or
// malformed feed yields an empty schedule so the agent can still answer,
// it never blocks conversation processing.
type FeedProvider struct {
	httpClient *http.Client
	feedURL    string
}

func NewFeedProvider(feedURL string) *FeedProvider {
	return &FeedProvider{
		httpClient: &http.Client{Timeout: config.OutboundHTTPTimeout},
		feedURL:    feedURL,
	}
}

func (p *FeedProvider) Upcoming(ctx context.Context) ([]Slot, error) {
	if p.feedURL == "" {
		return []Slot{}, nil
	}

	slots, err := p.fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("schedule feed unavailable, returning empty schedule")
		return []Slot{}, nil
	}
	return slots, nil
}

func (p *FeedProvider) fetch(ctx context.Context) ([]Slot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	var slots []Slot
	if err := json.Unmarshal(body, &slots); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return slots, nil
}
