package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/teamdevhq/media-relay/internal/config"
	"github.com/teamdevhq/media-relay/internal/models"
	"github.com/teamdevhq/media-relay/pkg/extractor"
)

// Relay failure taxonomy. Handlers map these onto the response envelope.
var (
	ErrMissingURL   = errors.New("missing url parameter")
	ErrServiceError = errors.New("downloader service error")
	ErrNoVideoFound = errors.New("no downloadable video found")
	ErrInternal     = errors.New("internal server error")
)

// MediaExtractor is the upstream client surface the relay needs.
type MediaExtractor interface {
	Extract(ctx context.Context, targetURL string) (*extractor.Response, error)
}

// AuditLog is the slice of the store the relay writes to.
type AuditLog interface {
	InsertLog(ctx context.Context, entry models.LogEntry) error
}

// attemptOutcome classifies a single upstream attempt. Every non-success
// outcome is retryable; whichever one terminates the last attempt decides
// the error returned to the caller.
type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	// upstream reported a non-success status field
	outcomeServiceError
	// response held no usable video variant
	outcomeNoVideo
	// transport or parse failure
	outcomeTransportError
)

// RelayService forwards a target URL to the extraction service and picks one
// downloadable video variant out of the response.
type RelayService struct {
	audit      AuditLog
	extractor  MediaExtractor
	attempts   int
	pause      time.Duration
	requireExt string
}

func NewRelayService(audit AuditLog, ex MediaExtractor, cfg *config.Config) *RelayService {
	attempts := cfg.RelayAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &RelayService{
		audit:      audit,
		extractor:  ex,
		attempts:   attempts,
		pause:      cfg.RelayRetryPause,
		requireExt: cfg.ExtractorRequireExt,
	}
}

// Relay resolves targetURL to a direct download link. Exactly one audit
// record is written per call, before the first upstream attempt.
func (s *RelayService) Relay(ctx context.Context, key, targetURL, clientIP string) (string, error) {
	if targetURL == "" {
		return "", ErrMissingURL
	}

	entry := models.LogEntry{
		KeyUsed:   key,
		URL:       targetURL,
		Timestamp: time.Now(),
		IP:        clientIP,
	}
	if err := s.audit.InsertLog(ctx, entry); err != nil {
		log.Error().Err(err).Msg("Failed to write audit log entry")
		return "", ErrInternal
	}

	var last attemptOutcome
	for i := 1; i <= s.attempts; i++ {
		link, outcome := s.attempt(ctx, targetURL)
		if outcome == outcomeSuccess {
			return link, nil
		}
		last = outcome

		log.Warn().
			Int("attempt", i).
			Int("max_attempts", s.attempts).
			Str("url", targetURL).
			Msg("Relay attempt failed")

		if i < s.attempts {
			if err := sleepCtx(ctx, s.pause); err != nil {
				return "", ErrInternal
			}
		}
	}

	switch last {
	case outcomeServiceError:
		return "", ErrServiceError
	case outcomeNoVideo:
		return "", ErrNoVideoFound
	default:
		return "", ErrInternal
	}
}

// attempt performs one upstream call and classifies the result.
func (s *RelayService) attempt(ctx context.Context, targetURL string) (string, attemptOutcome) {
	resp, err := s.extractor.Extract(ctx, targetURL)
	if err != nil {
		log.Debug().Err(err).Msg("Extractor call failed")
		return "", outcomeTransportError
	}

	if resp.StatusCode != 200 {
		return "", outcomeServiceError
	}

	link, ok := selectBestVideo(resp.Medias, s.requireExt)
	if !ok {
		return "", outcomeNoVideo
	}
	return link, outcomeSuccess
}

// selectBestVideo filters the media list down to real video variants and
// returns the link with the highest declared bandwidth. Ties go to the
// earliest entry in the upstream list.
func selectBestVideo(medias []extractor.Media, requireExt string) (string, bool) {
	var best *extractor.Media
	for i := range medias {
		m := &medias[i]
		if m.Type != "video" || m.IsAudio {
			continue
		}
		if requireExt != "" && m.Extension != requireExt {
			continue
		}
		if best == nil || m.Bandwidth > best.Bandwidth {
			best = m
		}
	}
	if best == nil {
		return "", false
	}
	return best.URL, true
}

// sleepCtx pauses between attempts without outliving the request.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
