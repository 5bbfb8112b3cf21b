package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teamdevhq/media-relay/internal/config"
	"github.com/teamdevhq/media-relay/internal/models"
	"github.com/teamdevhq/media-relay/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var adminTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// AdminHandler serves the password-gated key management panel.
type AdminHandler struct {
	store store.Store
	cfg   *config.Config
}

func NewAdminHandler(st store.Store, cfg *config.Config) *AdminHandler {
	return &AdminHandler{store: st, cfg: cfg}
}

type loginPage struct {
	Error string
}

type panelPage struct {
	Keys    []models.ApiKey
	Logs    []models.LogEntry
	SeedKey string
}

// LoginForm renders the login page
// GET /admin/login
func (h *AdminHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, http.StatusOK, "")
}

// Login checks the submitted password and starts an admin session
// POST /admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, http.StatusBadRequest, "Invalid form submission")
		return
	}

	if r.PostFormValue("password") != h.cfg.AdminPassword {
		h.renderLogin(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	token, err := NewAdminSession(h.cfg.SessionSecret, h.cfg.SessionTTL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign admin session")
		h.renderLogin(w, http.StatusInternalServerError, "Could not start session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// Panel renders the key table and the recent audit log
// GET /admin
func (h *AdminHandler) Panel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	keys, err := h.store.ListKeys(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list keys")
		http.Error(w, "Failed to load keys", http.StatusInternalServerError)
		return
	}

	logs, err := h.store.ListRecentLogs(ctx, h.cfg.LogDisplay)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list logs")
		http.Error(w, "Failed to load logs", http.StatusInternalServerError)
		return
	}

	h.render(w, "panel.html", panelPage{Keys: keys, Logs: logs, SeedKey: h.cfg.SeedKey})
}

// CreateKey inserts a key from the panel form. A blank value gets a
// generated one so the panel can issue keys directly.
// POST /admin/create_key
func (h *AdminHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	value := strings.TrimSpace(r.PostFormValue("key"))
	if value == "" {
		value = uuid.NewString()
	}

	if err := h.store.CreateKey(r.Context(), value, "admin"); err != nil {
		log.Error().Err(err).Msg("Failed to create key")
		http.Error(w, "Failed to create key", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// DeleteKey removes a key from the panel form. The seed key survives this.
// POST /admin/delete_key
func (h *AdminHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	value := strings.TrimSpace(r.PostFormValue("key"))
	if value != "" {
		if err := h.store.DeleteKey(r.Context(), value); err != nil {
			log.Error().Err(err).Msg("Failed to delete key")
			http.Error(w, "Failed to delete key", http.StatusInternalServerError)
			return
		}
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// Logout clears the admin session
// GET /admin/logout
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

func (h *AdminHandler) renderLogin(w http.ResponseWriter, status int, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := adminTemplates.ExecuteTemplate(w, "login.html", loginPage{Error: errMsg}); err != nil {
		log.Error().Err(err).Msg("Failed to render login page")
	}
}

func (h *AdminHandler) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := adminTemplates.ExecuteTemplate(w, name, data); err != nil {
		log.Error().Err(err).Msg("Failed to render admin page")
	}
}
