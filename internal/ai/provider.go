package ai

import (
	"context"
	"fmt"
	"time"
)

// Backend identifiers accepted by New.
const (
	BackendStackSpot  = "stackspot"
	BackendOpenRouter = "openrouter"
	BackendGemini     = "gemini"
)

// Config selects and configures one backend.
type Config struct {
	Backend   string
	APIKey    string
	Model     string
	URL       string // endpoint override for the HTTP backends
	Proxy     string // SOCKS5 address
	Timeout   time.Duration
	RateLimit float64 // calls per second, 0 for unlimited
}

// New builds the provider named by cfg.Backend.
func New(ctx context.Context, cfg Config) (Provider, error) {
	hc, err := NewHTTPClient(cfg.Timeout, cfg.Proxy)
	if err != nil {
		return nil, err
	}
	var p Provider
	switch cfg.Backend {
	case BackendOpenRouter:
		p = NewOpenRouter(hc, cfg.URL, cfg.APIKey, cfg.Model)
	case BackendStackSpot:
		p = NewStackSpot(hc, cfg.URL, cfg.APIKey)
	case BackendGemini:
		g, err := NewGemini(ctx, hc, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		p = g
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Backend)
	}
	return WithRateLimit(p, NewLimiter(cfg.RateLimit)), nil
}
