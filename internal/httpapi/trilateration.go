package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nzyme_console/console-go/internal/floorplan"
)

const trilaterationFailedMessage = "Could not compute trilateration result."

// trilaterationView is one open viewer plus the request that produced its current result.
type trilaterationView struct {
	viewer *floorplan.Viewer

	mu  sync.Mutex
	req floorplan.Request
}

// runTrilateration executes req and feeds the outcome to the viewer. Platform refusals are shown
// verbatim, anything else as a generic message.
func (h *Handler) runTrilateration(ctx context.Context, tv *trilaterationView, req floorplan.Request) {
	tv.mu.Lock()
	tv.req = req
	tv.mu.Unlock()

	if len(req.Taps) < floorplan.MinTaps {
		return
	}

	res, err := floorplan.NewUpstream(h.api).Trilaterate(ctx, req)
	if err != nil {
		msg := trilaterationFailedMessage
		var re *floorplan.ResultError
		if errors.As(err, &re) {
			msg = re.Message
		} else {
			h.log.Warn().Err(err).Str("target", req.Target).Msg("trilateration failed")
		}
		if err := tv.viewer.SetError(ctx, msg); err != nil {
			h.log.Warn().Err(err).Msg("floor listing refresh failed")
		}
		return
	}
	if err := tv.viewer.SetData(ctx, res); err != nil {
		h.log.Warn().Err(err).Msg("floor listing refresh failed")
	}
}

type trilaterationCreate struct {
	TargetType string     `json:"target_type"`
	Target     string     `json:"target"`
	LocationID *uuid.UUID `json:"location_id,omitempty"`
	FloorID    *uuid.UUID `json:"floor_id,omitempty"`
}

type trilaterationViewResponse struct {
	ID uuid.UUID `json:"id"`
	floorplan.View
}

func (h *Handler) handleCreateTrilaterationView(w http.ResponseWriter, r *http.Request) {
	if !h.ensureUpstream(w) {
		return
	}
	var body trilaterationCreate
	if err := decodeJSONStrict(r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}

	rec, _ := sessionFrom(r.Context())
	taps := h.selector(rec.ID).Selected()
	req := floorplan.Request{
		TargetType: body.TargetType,
		Target:     body.Target,
		Taps:       taps,
		LocationID: body.LocationID,
		FloorID:    body.FloorID,
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	id := uuid.New()
	tv := &trilaterationView{req: req}
	tv.viewer = floorplan.NewViewer(floorplan.Options{
		Lister:  floorplan.NewUpstream(h.api),
		Logger:  h.log.With().Str("view_id", id.String()).Logger(),
		Metrics: h.metrics,
		OnFloorSelected: func(ctx context.Context, locationID, floorID uuid.UUID) {
			tv.mu.Lock()
			next := tv.req.OnFloor(locationID, floorID)
			tv.mu.Unlock()
			h.runTrilateration(ctx, tv, next)
		},
	})
	if err := tv.viewer.SetTaps(r.Context(), taps); err != nil {
		h.requestLog(r).Warn().Err(err).Msg("floor listing refresh failed")
	}
	h.viewers.Put(rec.ID, id.String(), tv)

	h.runTrilateration(r.Context(), tv, req)
	h.writeJSON(w, http.StatusCreated, trilaterationViewResponse{ID: id, View: tv.viewer.Render()})
}

// lookupView resolves {viewId} within the caller's console session.
func (h *Handler) lookupView(w http.ResponseWriter, r *http.Request) (uuid.UUID, *trilaterationView, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "viewId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "viewId must be a UUID", nil)
		return uuid.Nil, nil, false
	}
	rec, _ := sessionFrom(r.Context())
	tv, ok := h.viewers.Get(rec.ID, id.String())
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "trilateration view not found", nil)
		return uuid.Nil, nil, false
	}
	return id, tv, true
}

func (h *Handler) handleGetTrilaterationView(w http.ResponseWriter, r *http.Request) {
	id, tv, ok := h.lookupView(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, trilaterationViewResponse{ID: id, View: tv.viewer.Render()})
}

// handleToggleFloorSelector answers with the view even when the listing fetch fails;
// the selector then renders its failed state.
func (h *Handler) handleToggleFloorSelector(w http.ResponseWriter, r *http.Request) {
	id, tv, ok := h.lookupView(w, r)
	if !ok {
		return
	}
	if err := tv.viewer.ToggleSelector(r.Context()); err != nil {
		h.requestLog(r).Warn().Err(err).Msg("floor listing failed")
	}
	h.writeJSON(w, http.StatusOK, trilaterationViewResponse{ID: id, View: tv.viewer.Render()})
}

type floorPageUpdate struct {
	Page int `json:"page"`
}

func (h *Handler) handleSetFloorPage(w http.ResponseWriter, r *http.Request) {
	id, tv, ok := h.lookupView(w, r)
	if !ok {
		return
	}
	var body floorPageUpdate
	if err := decodeJSONStrict(r, &body); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}

	if err := tv.viewer.SetPage(r.Context(), body.Page); err != nil {
		if errors.Is(err, floorplan.ErrInvalidPage) {
			h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
			return
		}
		h.requestLog(r).Warn().Err(err).Msg("floor listing failed")
	}
	h.writeJSON(w, http.StatusOK, trilaterationViewResponse{ID: id, View: tv.viewer.Render()})
}

func (h *Handler) handleSelectFloor(w http.ResponseWriter, r *http.Request) {
	id, tv, ok := h.lookupView(w, r)
	if !ok {
		return
	}
	floorID, err := uuid.Parse(chi.URLParam(r, "floorId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "floorId must be a UUID", nil)
		return
	}

	if !tv.viewer.SelectFloor(r.Context(), floorID) {
		h.writeError(w, http.StatusConflict, "floor_not_selectable", "floor cannot be selected", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, trilaterationViewResponse{ID: id, View: tv.viewer.Render()})
}
