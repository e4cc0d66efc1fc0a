package floorplan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nzyme_console/console-go/internal/metrics"
)

// PerPage is the fixed page size of the floor listing.
const PerPage = 10

// Offset returns the listing offset of a 1-based page.
func Offset(page int) int {
	return (page - 1) * PerPage
}

type State int

const (
	NoTapsSelected State = iota
	AwaitingResult
	Error
	Ready
)

func (s State) String() string {
	switch s {
	case NoTapsSelected:
		return "no_taps_selected"
	case AwaitingResult:
		return "awaiting_result"
	case Error:
		return "error"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SelectorState is the floor selector's state. It is only meaningful while the viewer is
// Ready.
type SelectorState int

const (
	SelectorClosed SelectorState = iota
	SelectorLoading
	SelectorLoaded
	SelectorFailed
)

func (s SelectorState) String() string {
	switch s {
	case SelectorClosed:
		return "closed"
	case SelectorLoading:
		return "loading"
	case SelectorLoaded:
		return "loaded"
	case SelectorFailed:
		return "failed"
	default:
		return fmt.Sprintf("selector(%d)", int(s))
	}
}

var ErrInvalidPage = errors.New("page must be 1 or greater")

// FloorLister fetches one page of a location's floors.
type FloorLister interface {
	ListFloors(ctx context.Context, locationID uuid.UUID, limit, offset int) (FloorPage, error)
}

// FloorSelectedFunc is called when the user picks another floor. The viewer does not
// change state itself; the callee produces the new result and hands it back via SetData.
type FloorSelectedFunc func(ctx context.Context, locationID, floorID uuid.UUID)

type Options struct {
	Lister          FloorLister
	OnFloorSelected FloorSelectedFunc
	Logger          zerolog.Logger
	Metrics         *metrics.Metrics
}

// Viewer is the state of one trilateration result view. All methods are safe for
// concurrent use. Listing fetches run without the lock held; a listing that arrives after
// a newer fetch was issued, or after the data or page changed, is discarded.
type Viewer struct {
	lister   FloorLister
	onSelect FloorSelectedFunc
	log      zerolog.Logger
	metrics  *metrics.Metrics

	mu         sync.Mutex
	taps       []uuid.UUID
	errMsg     string
	data       *Result
	open       bool
	page       int
	generation uint64
	loading    bool
	listing    *FloorPage
	listingErr error
}

func NewViewer(opts Options) *Viewer {
	return &Viewer{
		lister:   opts.Lister,
		onSelect: opts.OnFloorSelected,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		page:     1,
	}
}

// SetTaps replaces the contributing taps. If that makes the view Ready again with the
// selector open, the listing is fetched.
func (v *Viewer) SetTaps(ctx context.Context, taps []uuid.UUID) error {
	v.mu.Lock()
	v.taps = append([]uuid.UUID(nil), taps...)
	v.mu.Unlock()

	return v.refresh(ctx)
}

// SetError records an error message from the backend. An empty message clears it, and
// like SetTaps may bring an open selector back to a fetch.
func (v *Viewer) SetError(ctx context.Context, msg string) error {
	v.mu.Lock()
	v.errMsg = msg
	v.mu.Unlock()

	return v.refresh(ctx)
}

// SetData replaces the result. A different result clears the floor listing and, if the
// selector is open, re-fetches it for the current page. The page is kept.
func (v *Viewer) SetData(ctx context.Context, data *Result) error {
	v.mu.Lock()
	if data == v.data {
		v.mu.Unlock()
		return nil
	}
	v.data = data
	v.errMsg = ""
	v.invalidateLocked()
	v.mu.Unlock()

	return v.refresh(ctx)
}

func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *Viewer) stateLocked() State {
	switch {
	case len(v.taps) < MinTaps:
		return NoTapsSelected
	case v.errMsg != "":
		return Error
	case v.data == nil:
		return AwaitingResult
	default:
		return Ready
	}
}

func (v *Viewer) SelectorState() SelectorState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selectorStateLocked()
}

func (v *Viewer) selectorStateLocked() SelectorState {
	switch {
	case !v.open || v.stateLocked() != Ready:
		return SelectorClosed
	case v.listing != nil:
		return SelectorLoaded
	case v.listingErr != nil:
		return SelectorFailed
	default:
		return SelectorLoading
	}
}

func (v *Viewer) Page() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.page
}

// ToggleSelector opens or closes the floor selector. Opening fetches the listing unless
// one is already loaded for the current data and page. Outside Ready there is no
// selector and the call is inert.
func (v *Viewer) ToggleSelector(ctx context.Context) error {
	v.mu.Lock()
	if v.stateLocked() != Ready {
		v.mu.Unlock()
		return nil
	}
	v.open = !v.open
	opened := v.open
	if opened && v.listingErr != nil {
		v.listingErr = nil
	}
	v.mu.Unlock()

	if !opened {
		return nil
	}
	return v.refresh(ctx)
}

// SetPage moves the floor listing to another 1-based page.
func (v *Viewer) SetPage(ctx context.Context, page int) error {
	if page < 1 {
		return ErrInvalidPage
	}

	v.mu.Lock()
	if page == v.page {
		v.mu.Unlock()
		return nil
	}
	v.page = page
	v.invalidateLocked()
	v.mu.Unlock()

	return v.refresh(ctx)
}

// SelectFloor activates a row of the listing. It reports whether the floor was
// selectable; only then is the callback invoked, once, without the lock held.
func (v *Viewer) SelectFloor(ctx context.Context, floorID uuid.UUID) bool {
	v.mu.Lock()
	if v.stateLocked() != Ready || v.listing == nil {
		v.mu.Unlock()
		return false
	}
	current := v.data.TenantFloor.ID
	locationID := v.data.TenantLocation.ID

	var found *FloorSummary
	for i := range v.listing.Floors {
		if v.listing.Floors[i].ID == floorID {
			found = &v.listing.Floors[i]
			break
		}
	}
	v.mu.Unlock()

	if found == nil || !selectable(*found, current) {
		return false
	}
	if v.onSelect != nil {
		v.onSelect(ctx, locationID, floorID)
	}
	return true
}

func selectable(f FloorSummary, current uuid.UUID) bool {
	return f.ID != current && f.Eligible()
}

func (v *Viewer) invalidateLocked() {
	v.generation++
	v.listing = nil
	v.listingErr = nil
	v.loading = false
}

// refresh fetches the listing when the selector is open on a ready view and nothing is
// loaded or in flight for the current generation.
func (v *Viewer) refresh(ctx context.Context) error {
	v.mu.Lock()
	if !v.open || v.stateLocked() != Ready || v.listing != nil || v.loading || v.lister == nil {
		v.mu.Unlock()
		return nil
	}
	v.generation++
	gen := v.generation
	v.loading = true
	locationID := v.data.TenantLocation.ID
	page := v.page
	v.mu.Unlock()

	fp, err := v.lister.ListFloors(ctx, locationID, PerPage, Offset(page))

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		v.metrics.IncStaleResponse("floor_selector")
		v.log.Debug().Str("location_id", locationID.String()).Int("page", page).Msg("discarded stale floor listing")
		return nil
	}
	v.loading = false
	if err != nil {
		v.listingErr = err
		return fmt.Errorf("list floors of location %s: %w", locationID, err)
	}
	if fp.Floors == nil {
		fp.Floors = []FloorSummary{}
	}
	v.listing = &fp
	return nil
}
