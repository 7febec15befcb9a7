package editor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"timeline-editor/internal/playback"
	"timeline-editor/internal/timeline"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the session over HTTP using go-chi.
type Handler struct {
	session *Session
	hub     *Hub
	log     *slog.Logger
}

// NewHandler returns a Handler for session. hub may be nil to disable the
// snapshot stream.
func NewHandler(session *Session, hub *Hub, log *slog.Logger) *Handler {
	return &Handler{session: session, hub: hub, log: log}
}

// Routes mounts every session endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/session", h.GetSession)
	r.Get("/session/layout", h.GetLayout)
	r.Route("/transport", func(r chi.Router) {
		r.Post("/play", h.Play)
		r.Post("/pause", h.Pause)
		r.Post("/stop", h.Stop)
		r.Post("/toggle", h.Toggle)
	})
	r.Post("/reference/toggle", h.ToggleReference)
	r.Route("/playhead", func(r chi.Router) {
		r.Post("/grab", h.GrabPlayhead)
		r.Post("/move", h.MovePlayhead)
		r.Post("/release", h.ReleasePlayhead)
	})
	r.Route("/tracks/{track_id}/segments/{segment_id}", func(r chi.Router) {
		r.Post("/pointer-down", h.PointerDown)
		r.Post("/double-click", h.DoubleClick)
	})
	r.Route("/pointer", func(r chi.Router) {
		r.Post("/move", h.PointerMove)
		r.Post("/up", h.PointerUp)
	})
	r.Route("/proposal", func(r chi.Router) {
		r.Post("/split", h.ConfirmSplit)
		r.Post("/delete", h.DeleteProposed)
		r.Delete("/", h.CancelProposal)
	})
	if h.hub != nil {
		r.Get("/ws", h.Stream)
	}
}

type pointerBody struct {
	X *float64 `json:"x"`
}

type pointerDownBody struct {
	Kind timeline.EditKind `json:"kind"`
	X    *float64          `json:"x"`
}

type doubleClickBody struct {
	OffsetPx *float64 `json:"offsetPx"`
}

// GetSession handles GET /session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.session.Snapshot(r.Context())
	if err != nil {
		h.fail(w, "snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetLayout handles GET /session/layout?scroll=&viewport=.
func (h *Handler) GetLayout(w http.ResponseWriter, r *http.Request) {
	scroll, err := queryFloat(r, "scroll")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	viewport, err := queryFloat(r, "viewport")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	v, err := h.session.Layout(r.Context(), scroll, viewport)
	if err != nil {
		h.fail(w, "layout", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Play handles POST /transport/play.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	h.transport(w, r, "play", h.session.Play)
}

// Pause handles POST /transport/pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transport(w, r, "pause", h.session.Pause)
}

// Stop handles POST /transport/stop.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	h.transport(w, r, "stop", h.session.Stop)
}

// Toggle handles POST /transport/toggle.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.transport(w, r, "toggle", h.session.Toggle)
}

func (h *Handler) transport(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context) error) {
	if err := fn(r.Context()); err != nil {
		h.fail(w, op, err)
		return
	}
	h.GetSession(w, r)
}

// ToggleReference handles POST /reference/toggle.
func (h *Handler) ToggleReference(w http.ResponseWriter, r *http.Request) {
	playing, err := h.session.ToggleReference(r.Context())
	if err != nil {
		h.fail(w, "toggle reference", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"playing": playing})
}

// GrabPlayhead handles POST /playhead/grab. Body: { "x": 432 }.
func (h *Handler) GrabPlayhead(w http.ResponseWriter, r *http.Request) {
	x, ok := h.decodeX(w, r)
	if !ok {
		return
	}
	if err := h.session.GrabPlayhead(r.Context(), x); err != nil {
		h.fail(w, "grab playhead", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MovePlayhead handles POST /playhead/move. Body: { "x": 500 }.
func (h *Handler) MovePlayhead(w http.ResponseWriter, r *http.Request) {
	x, ok := h.decodeX(w, r)
	if !ok {
		return
	}
	elapsed, err := h.session.MovePlayhead(r.Context(), x)
	if err != nil {
		h.fail(w, "move playhead", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"elapsed": elapsed})
}

// ReleasePlayhead handles POST /playhead/release.
func (h *Handler) ReleasePlayhead(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ReleasePlayhead(r.Context()); err != nil {
		h.fail(w, "release playhead", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PointerDown handles POST /tracks/{track_id}/segments/{segment_id}/pointer-down.
// Body: { "kind": "move", "x": 300 }.
func (h *Handler) PointerDown(w http.ResponseWriter, r *http.Request) {
	trackID := timeline.TrackID(chi.URLParam(r, "track_id"))
	segID := timeline.SegmentID(chi.URLParam(r, "segment_id"))

	var body pointerDownBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.X == nil {
		h.log.Debug("invalid pointer-down body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.session.PointerDown(r.Context(), trackID, segID, body.Kind, *body.X); err != nil {
		h.fail(w, "pointer down", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PointerMove handles POST /pointer/move. Body: { "x": 450 }.
func (h *Handler) PointerMove(w http.ResponseWriter, r *http.Request) {
	x, ok := h.decodeX(w, r)
	if !ok {
		return
	}
	seg, err := h.session.PointerMove(r.Context(), x)
	if err != nil {
		h.fail(w, "pointer move", err)
		return
	}
	writeJSON(w, http.StatusOK, seg)
}

// PointerUp handles POST /pointer/up. Body: { "x": 450 }. The response is
// the optimistic segment; the confirmed one follows on the stream.
func (h *Handler) PointerUp(w http.ResponseWriter, r *http.Request) {
	x, ok := h.decodeX(w, r)
	if !ok {
		return
	}
	seg, err := h.session.PointerUp(r.Context(), x)
	if err != nil {
		h.fail(w, "pointer up", err)
		return
	}
	writeJSON(w, http.StatusAccepted, seg)
}

// DoubleClick handles POST /tracks/{track_id}/segments/{segment_id}/double-click.
// Body: { "offsetPx": 120 }.
func (h *Handler) DoubleClick(w http.ResponseWriter, r *http.Request) {
	trackID := timeline.TrackID(chi.URLParam(r, "track_id"))
	segID := timeline.SegmentID(chi.URLParam(r, "segment_id"))

	var body doubleClickBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OffsetPx == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	p, err := h.session.DoubleClick(r.Context(), trackID, segID, *body.OffsetPx)
	if err != nil {
		h.fail(w, "double click", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ConfirmSplit handles POST /proposal/split.
func (h *Handler) ConfirmSplit(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ConfirmSplit(r.Context()); err != nil {
		h.fail(w, "confirm split", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// DeleteProposed handles POST /proposal/delete.
func (h *Handler) DeleteProposed(w http.ResponseWriter, r *http.Request) {
	if err := h.session.DeleteProposed(r.Context()); err != nil {
		h.fail(w, "delete segment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelProposal handles DELETE /proposal.
func (h *Handler) CancelProposal(w http.ResponseWriter, r *http.Request) {
	if err := h.session.CancelProposal(r.Context()); err != nil {
		h.fail(w, "cancel proposal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stream handles GET /ws: a websocket of session snapshots, one per event.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	initial, err := h.session.SnapshotJSON(r.Context())
	if err != nil {
		h.fail(w, "stream", err)
		return
	}
	h.hub.Serve(w, r, initial)
}

func (h *Handler) decodeX(w http.ResponseWriter, r *http.Request) (float64, bool) {
	var body pointerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.X == nil {
		h.log.Debug("invalid pointer body")
		w.WriteHeader(http.StatusBadRequest)
		return 0, false
	}
	return *body.X, true
}

// fail maps a session error to a status code.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(op+" failed", slog.String("error", err.Error()))
	} else {
		h.log.Debug(op+" refused", slog.String("error", err.Error()))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, timeline.ErrTrackNotFound),
		errors.Is(err, timeline.ErrSegmentNotFound),
		errors.Is(err, playback.ErrNoReference):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidEditKind):
		return http.StatusBadRequest
	case errors.Is(err, ErrDragActive),
		errors.Is(err, ErrNoDrag),
		errors.Is(err, ErrReconcileInFlight),
		errors.Is(err, ErrNoProposal),
		errors.Is(err, ErrEditActive),
		errors.Is(err, ErrScrubActive),
		errors.Is(err, playback.ErrScrubbing),
		errors.Is(err, playback.ErrNotScrubbing),
		errors.Is(err, timeline.ErrOverlap):
		return http.StatusConflict
	case errors.Is(err, timeline.ErrInvalidSpan),
		errors.Is(err, timeline.ErrInvalidSplit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func queryFloat(r *http.Request, key string) (float64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
