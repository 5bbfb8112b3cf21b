package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/teamdevhq/media-relay/internal/config"
	"github.com/teamdevhq/media-relay/internal/services"
)

// relayResponse is the success envelope. The HTTP status is mirrored inside
// the body, matching what API consumers already parse.
type relayResponse struct {
	StatusCode   int    `json:"statusCode"`
	DownloadLink string `json:"download_link"`
	Credits      string `json:"credits"`
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
}

type RelayHandler struct {
	svc     *services.RelayService
	credits string
}

func NewRelayHandler(svc *services.RelayService, cfg *config.Config) *RelayHandler {
	return &RelayHandler{svc: svc, credits: cfg.CreditsURL}
}

// Download resolves a media URL to a direct download link
// GET /api/v1/relay?key=<K>&url=<U>
func (h *RelayHandler) Download(w http.ResponseWriter, r *http.Request) {
	key, ok := KeyFromContext(r.Context())
	if !ok {
		// Route is always mounted behind RequireKey; reaching here without
		// a key means the router is miswired.
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	targetURL := r.URL.Query().Get("url")

	link, err := h.svc.Relay(r.Context(), key, targetURL, clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingURL):
			writeError(w, http.StatusBadRequest, "Missing url parameter", "")
		case errors.Is(err, services.ErrNoVideoFound):
			writeError(w, http.StatusNotFound, "No downloadable video found", "")
		case errors.Is(err, services.ErrServiceError):
			writeError(w, http.StatusInternalServerError, "Downloader service error", "")
		default:
			log.Error().Err(err).Str("url", targetURL).Msg("Relay failed")
			writeError(w, http.StatusInternalServerError, "Internal server error", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, relayResponse{
		StatusCode:   http.StatusOK,
		DownloadLink: link,
		Credits:      h.credits,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg, contact string) {
	writeJSON(w, status, errorResponse{
		StatusCode: status,
		Error:      msg,
		Message:    contact,
	})
}

// clientIP returns the request address without the port. chi's RealIP
// middleware has already resolved proxy headers by the time this runs.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
