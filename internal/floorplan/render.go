package floorplan

import (
	"fmt"

	"github.com/google/uuid"

	"nzyme_console/console-go/internal/format"
)

const (
	NoTapsMessage = "The trilateration feature is only available when at least three nzyme taps are selected and " +
		"when all selected taps are placed at the same tenant location and on the same floor."

	hintCurrentFloor = "This is the currently selected floor."
	hintIneligible   = "You can only select floors that have a floor plan and at least 3 placed taps."
)

type View struct {
	State   string      `json:"state"`
	Message string      `json:"message,omitempty"`
	Result  *ResultView `json:"result,omitempty"`
}

type ResultView struct {
	Headline     string        `json:"headline"`
	Context      []string      `json:"context"`
	ToggleLabel  string        `json:"toggle_label"`
	LocationID   uuid.UUID     `json:"location_id"`
	FloorID      uuid.UUID     `json:"floor_id"`
	Plan         Plan          `json:"plan"`
	TapPositions []TapPosition `json:"tap_positions"`
	Positions    []Position    `json:"positions"`
	Selector     *SelectorView `json:"selector,omitempty"`
}

type SelectorView struct {
	State   string     `json:"state"`
	Total   int64      `json:"total"`
	Page    int        `json:"page"`
	PerPage int        `json:"per_page"`
	Pages   int64      `json:"pages"`
	Floors  []FloorRow `json:"floors,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type FloorRow struct {
	ID           uuid.UUID `json:"id"`
	Number       int64     `json:"number"`
	Name         string    `json:"name"`
	Current      bool      `json:"current"`
	HasFloorPlan bool      `json:"has_floor_plan"`
	TapCount     string    `json:"tap_count"`
	EnoughTaps   bool      `json:"enough_taps"`
	Selectable   bool      `json:"selectable"`
	Hint         string    `json:"hint,omitempty"`
}

// Render returns the view model for the current state. The selector only appears while
// the viewer is Ready and the selector is open.
func (v *Viewer) Render() View {
	v.mu.Lock()
	defer v.mu.Unlock()

	st := v.stateLocked()
	out := View{State: st.String()}
	switch st {
	case NoTapsSelected:
		out.Message = NoTapsMessage
		return out
	case Error:
		out.Message = v.errMsg
		return out
	case AwaitingResult:
		return out
	}

	d := v.data
	rv := &ResultView{
		Headline: fmt.Sprintf("Location: %s / Floor: %s", d.TenantLocation.Name, d.TenantFloor.Name),
		Context: []string{
			"Generated at " + format.Time(d.GeneratedAt),
			fmt.Sprintf("Location %q, Floor %q", d.TenantLocation.Name, d.TenantFloor.Name),
			"Locating " + d.TargetDescription,
		},
		ToggleLabel:  "Change Floor",
		LocationID:   d.TenantLocation.ID,
		FloorID:      d.TenantFloor.ID,
		Plan:         d.Plan,
		TapPositions: nonNil(d.TenantFloor.TapPositions),
		Positions:    nonNil(d.Locations),
	}
	if v.open {
		rv.ToggleLabel = "Hide Floor Selector"
		rv.Selector = v.renderSelectorLocked()
	}
	out.Result = rv
	return out
}

func (v *Viewer) renderSelectorLocked() *SelectorView {
	sv := &SelectorView{
		State:   v.selectorStateLocked().String(),
		Page:    v.page,
		PerPage: PerPage,
	}
	if v.listingErr != nil {
		sv.Error = "Could not load floors."
	}
	if v.listing == nil {
		return sv
	}

	sv.Total = v.listing.Count
	sv.Pages = (v.listing.Count + PerPage - 1) / PerPage
	current := v.data.TenantFloor.ID
	sv.Floors = make([]FloorRow, 0, len(v.listing.Floors))
	for _, f := range v.listing.Floors {
		row := FloorRow{
			ID:           f.ID,
			Number:       f.Number,
			Name:         f.Name,
			Current:      f.ID == current,
			HasFloorPlan: f.HasFloorPlan,
			TapCount:     format.Count(f.TapCount),
			EnoughTaps:   f.TapCount >= MinTaps,
			Selectable:   selectable(f, current),
		}
		switch {
		case row.Current:
			row.Name += " (Current Floor)"
			row.Hint = hintCurrentFloor
		case !row.Selectable:
			row.Hint = hintIneligible
		}
		sv.Floors = append(sv.Floors, row)
	}
	return sv
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
