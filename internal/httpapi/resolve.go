package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"nzyme_console/console-go/internal/routes"
)

type resolvedRoute struct {
	Name   string   `json:"name"`
	Params []string `json:"params"`
	Path   string   `json:"path"`
}

// handleResolveRoute builds a navigation path, e.g.
// /api/v1/routes/resolve?name=ethernet.l4.ip&params=10.0.0.1
func (h *Handler) handleResolveRoute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("name"))
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "name is required", map[string]any{"names": routes.Names()})
		return
	}

	params := q["params"]
	path, err := h.routes.Path(name, params...)
	if err != nil {
		if errors.Is(err, routes.ErrUnknownRoute) {
			h.writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
			return
		}
		expected, _ := routes.Params(name)
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), map[string]any{"params": expected})
		return
	}

	if params == nil {
		params = []string{}
	}
	h.writeJSON(w, http.StatusOK, resolvedRoute{Name: name, Params: params, Path: path})
}
