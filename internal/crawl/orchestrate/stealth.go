package orchestrate

import (
	"time"

	"github.com/ragcrawld/ragcrawld/internal/crawl/strategy"
)

// StealthConfig configures the underlying crawler's anti-automation
// profile. The crawler itself is an external collaborator;
// this struct only carries the configuration through to it.
type StealthConfig struct {
	Enabled         bool
	WaitForSelector string
	PostLoadDelay   time.Duration
}

// FetcherFactory builds the strategy.Fetcher the orchestrator hands to
// each crawl strategy, applying stealth configuration when requested.
type FetcherFactory interface {
	NewFetcher(stealth StealthConfig) strategy.Fetcher
}
