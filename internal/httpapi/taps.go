package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"nzyme_console/console-go/internal/tapselect"
)

const tapSelectionKey = "taps"

// selector returns the tap selection of a console session, creating an empty one.
func (h *Handler) selector(sessionID string) *tapselect.Selector {
	return h.taps.GetOrCreate(sessionID, tapSelectionKey, func() *tapselect.Selector {
		return tapselect.New()
	})
}

type tapsResponse struct {
	Selected []uuid.UUID `json:"selected"`
	Enabled  bool        `json:"enabled"`
}

type tapsUpdate struct {
	Taps []uuid.UUID `json:"taps"`
}

func (h *Handler) handleGetTaps(w http.ResponseWriter, r *http.Request) {
	rec, _ := sessionFrom(r.Context())
	sel := h.selector(rec.ID)
	h.writeJSON(w, http.StatusOK, tapsResponse{Selected: sel.Selected(), Enabled: sel.Enabled()})
}

func (h *Handler) handlePutTaps(w http.ResponseWriter, r *http.Request) {
	var req tapsUpdate
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid JSON body", map[string]any{"error": err.Error()})
		return
	}

	rec, _ := sessionFrom(r.Context())
	sel := h.selector(rec.ID)
	sel.Set(req.Taps)
	h.writeJSON(w, http.StatusOK, tapsResponse{Selected: sel.Selected(), Enabled: sel.Enabled()})
}
