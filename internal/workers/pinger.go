package workers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/teamdevhq/media-relay/internal/config"
)

// Pinger keeps a hosted process warm by periodically requesting its own
// liveness endpoint. Failures are logged and ignored; the loop only ends
// when the context is cancelled.
type Pinger struct {
	httpClient *http.Client
	target     string
	interval   time.Duration
}

// NewPinger creates the liveness pinger from config.
func NewPinger(cfg *config.Config) *Pinger {
	return &Pinger{
		httpClient: &http.Client{
			Timeout: cfg.PingTimeout,
		},
		target:   cfg.SelfURL + "/ping",
		interval: cfg.PingInterval,
	}
}

// Start begins the periodic self-ping. Blocks until ctx is cancelled.
func (p *Pinger) Start(ctx context.Context) {
	log.Info().
		Str("target", p.target).
		Dur("interval", p.interval).
		Msg("Starting liveness pinger")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Liveness pinger stopped")
			return
		case <-ticker.C:
			p.ping(ctx)
		}
	}
}

// ping performs one best-effort request.
func (p *Pinger) ping(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.target, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to build ping request")
		return
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("Self-ping failed")
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
