package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/bus"
	"github.com/mikey-austin/tv_animator/internal/core"
	"github.com/mikey-austin/tv_animator/internal/state"
	"github.com/mikey-austin/tv_animator/pkg/tva"
)

// OBSController is the admin surface of the external tool link.
type OBSController interface {
	Status() tva.OBSStatus
	Connect() error
	Disconnect(force bool) error
}

// Handler exposes the trigger API over chi.
type Handler struct {
	service *core.Service
	obs     OBSController
	log     *zap.Logger
}

// NewHandler creates the API handler. obs may be nil when the link
// module is disabled.
func NewHandler(service *core.Service, obs OBSController, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, obs: obs, log: log}
}

// Routes mounts all API routes on a router. ws and metrics are optional
// extra handlers mounted at /ws and /metrics.
func (h *Handler) Routes(ws http.Handler, metrics http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/trigger", h.Trigger)
	r.Get("/trigger", h.Trigger)
	r.Post("/stop", h.Stop)
	r.Get("/animations", h.Animations)
	r.Get("/health", h.Health)
	r.Route("/api/obs", func(r chi.Router) {
		r.Get("/status", h.OBSStatus)
		r.Post("/connect", h.OBSConnect)
		r.Post("/disconnect", h.OBSDisconnect)
	})
	if ws != nil {
		r.Handle("/ws", ws)
	}
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	return r
}

type triggerRequest struct {
	Animation string `json:"animation"`
}

// Trigger handles POST /trigger and the GET query form.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	var id string
	switch r.Method {
	case http.MethodGet:
		id = r.URL.Query().Get("animation")
	default:
		var req triggerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
			return
		}
		id = req.Animation
	}
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "animation parameter required"})
		return
	}

	result, err := h.service.Trigger(id, bus.CauseHTTP)
	if err != nil {
		var notFound *state.NotFoundError
		if errors.As(err, &notFound) {
			status := h.service.Status()
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error":                notFound.Error(),
				"available_media":      status.AllMedia,
				"available_animations": status.Animations,
				"available_videos":     status.Videos,
			})
			return
		}
		h.log.Error("trigger failed", zap.String("media", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"current_animation": result.Current,
		"media_type":        string(result.MediaType),
		"message":           result.Message,
	})
}

// Stop handles POST /stop.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	result := h.service.Stop(bus.CauseStop)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": result.Message,
	})
}

// Animations handles GET /animations.
func (h *Handler) Animations(w http.ResponseWriter, r *http.Request) {
	status := h.service.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"animations":        status.Animations,
		"videos":            status.Videos,
		"all_media":         status.AllMedia,
		"current_animation": status.Current,
		"count":             len(status.AllMedia),
		"animation_count":   len(status.Animations),
		"video_count":       len(status.Videos),
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.service.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "healthy",
		"animations_available":  len(status.Animations),
		"videos_available":      len(status.Videos),
		"total_media_available": len(status.AllMedia),
	})
}

// OBSStatus handles GET /api/obs/status.
func (h *Handler) OBSStatus(w http.ResponseWriter, r *http.Request) {
	if h.obs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "OBS link disabled"})
		return
	}
	writeJSON(w, http.StatusOK, h.obs.Status())
}

// OBSConnect handles POST /api/obs/connect.
func (h *Handler) OBSConnect(w http.ResponseWriter, r *http.Request) {
	if h.obs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "OBS link disabled"})
		return
	}
	if err := h.obs.Connect(); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "OBS connection requested"})
}

type obsDisconnectRequest struct {
	Force bool `json:"force"`
}

// OBSDisconnect handles POST /api/obs/disconnect. Without force the
// request is refused while the persisted settings mark the link enabled.
func (h *Handler) OBSDisconnect(w http.ResponseWriter, r *http.Request) {
	if h.obs == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "OBS link disabled"})
		return
	}
	var req obsDisconnectRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if err := h.obs.Disconnect(req.Force); err != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "OBS disconnected"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
