package embedding

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// ResilientConfig configures the resilience wrapper around a provider.
type ResilientConfig struct {
	// Timeout bounds each provider call. Default: 5s.
	Timeout time.Duration

	// RequestsPerSecond limits outbound provider calls. Zero disables
	// the limiter.
	RequestsPerSecond float64

	// Breaker overrides the default circuit breaker settings.
	Breaker *BreakerConfig
}

// ResilientProvider wraps a primary provider with a per-call timeout, an
// outbound rate limit and a circuit breaker, and degrades to the
// deterministic fallback on any failure. Its Embed and EmbedImage never
// return an error: provider outage costs ranking quality, not availability.
type ResilientProvider struct {
	primary  Provider
	fallback *FallbackProvider
	breaker  *Breaker
	limiter  *rate.Limiter
	timeout  time.Duration
}

var _ Provider = (*ResilientProvider)(nil)

// NewResilient wraps primary with the resilience stack. The fallback is
// sized to the primary's dimension so degraded vectors stay comparable
// with healthy ones.
func NewResilient(primary Provider, cfg ResilientConfig) *ResilientProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	breaker := NewBreaker()
	if cfg.Breaker != nil {
		breaker = NewBreakerWithConfig(*cfg.Breaker)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	return &ResilientProvider{
		primary:  primary,
		fallback: NewFallbackProvider(primary.Dimension()),
		breaker:  breaker,
		limiter:  limiter,
		timeout:  cfg.Timeout,
	}
}

// Embed returns the primary provider's vector, or the deterministic
// fallback when the call is rejected, fails or times out.
func (p *ResilientProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := p.call(ctx, func(cctx context.Context) ([]float64, error) {
		return p.primary.Embed(cctx, text)
	})
	if err != nil {
		log.Printf("WARNING: embedding provider degraded, using fallback: %v", err)
		return p.fallback.Embed(ctx, text)
	}
	return vec, nil
}

// EmbedImage mirrors Embed for image bytes.
func (p *ResilientProvider) EmbedImage(ctx context.Context, data []byte) ([]float64, error) {
	vec, err := p.call(ctx, func(cctx context.Context) ([]float64, error) {
		return p.primary.EmbedImage(cctx, data)
	})
	if err != nil {
		log.Printf("WARNING: image embedding provider degraded, using fallback: %v", err)
		return p.fallback.EmbedImage(ctx, data)
	}
	return vec, nil
}

func (p *ResilientProvider) Dimension() int { return p.primary.Dimension() }

func (p *ResilientProvider) call(ctx context.Context, fn func(context.Context) ([]float64, error)) ([]float64, error) {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.limiter != nil {
		if err := p.limiter.Wait(cctx); err != nil {
			return nil, err
		}
	}

	return p.breaker.Execute(cctx, func() ([]float64, error) {
		return fn(cctx)
	})
}
