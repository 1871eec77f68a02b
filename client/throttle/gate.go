package throttle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var ErrMustNotBeZero = errors.New("must be greater than zero")

// Gate is a non-blocking token bucket.
type Gate struct {
	limiter *rate.Limiter
	rps     int
	burst   int
	logger  *slog.Logger

	mu        sync.Mutex
	exhausted time.Time
}

// New returns a Gate admitting rps events per second with the given burst.
// A nil logger disables logging.
func New(rps, burst int, logger *slog.Logger) (*Gate, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}

	return &Gate{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
		burst:   burst,
		logger:  logger,
	}, nil
}

// Allow consumes a token if one is available.
func (g *Gate) Allow() bool {
	ok := g.limiter.Allow()

	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case !ok && g.exhausted.IsZero():
		g.exhausted = time.Now()
		if g.logger != nil {
			g.logger.Info("throttle tokens exhausted", "rate", g.rps, "burst", g.burst)
		}
	case ok && !g.exhausted.IsZero():
		if g.logger != nil {
			g.logger.Info("throttle wait complete", "waited", time.Since(g.exhausted).String(), "rate", g.rps, "burst", g.burst)
		}
		g.exhausted = time.Time{}
	}

	return ok
}

// Delay reports how long until a token is available. Zero means Allow
// would succeed now.
func (g *Gate) Delay() time.Duration {
	tokens := g.limiter.TokensAt(time.Now())
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) / float64(g.rps) * float64(time.Second))
}
