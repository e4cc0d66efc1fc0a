package floorplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"nzyme_console/console-go/internal/upstream"
)

type Getter interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// Target kinds that can be located.
const (
	TargetBSSID  = "bssid"
	TargetClient = "client"
)

// Request names what to locate and, optionally, the floor to run the estimation on.
// Without a floor the platform picks the floor of the selected taps.
type Request struct {
	TargetType string
	Target     string
	Taps       []uuid.UUID
	LocationID *uuid.UUID
	FloorID    *uuid.UUID
}

func (r Request) Validate() error {
	var errs []error
	if r.TargetType != TargetBSSID && r.TargetType != TargetClient {
		errs = append(errs, fmt.Errorf("unknown target type %q", r.TargetType))
	}
	if strings.TrimSpace(r.Target) == "" {
		errs = append(errs, errors.New("target must not be empty"))
	}
	if (r.LocationID == nil) != (r.FloorID == nil) {
		errs = append(errs, errors.New("location and floor must be given together"))
	}
	return errors.Join(errs...)
}

// OnFloor returns a copy of the request pinned to a floor.
func (r Request) OnFloor(locationID, floorID uuid.UUID) Request {
	r.LocationID = &locationID
	r.FloorID = &floorID
	return r
}

// ResultError is a trilateration failure explained by the platform, e.g. taps placed on
// different floors. Its message is shown to the user as is.
type ResultError struct {
	Message string
}

func (e *ResultError) Error() string { return e.Message }

// Upstream reads floors and trilateration results from the platform API.
type Upstream struct {
	api Getter
}

func NewUpstream(api Getter) *Upstream {
	return &Upstream{api: api}
}

func (u *Upstream) ListFloors(ctx context.Context, locationID uuid.UUID, limit, offset int) (FloorPage, error) {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(limit))
	v.Set("offset", strconv.Itoa(offset))

	ctx = upstream.Endpoint(ctx, "/system/authentication/mgmt/tenants/locations/show/{id}/floors")
	path := "/system/authentication/mgmt/tenants/locations/show/" + locationID.String() + "/floors"

	var page FloorPage
	if err := u.api.Get(ctx, path, v, &page); err != nil {
		return FloorPage{}, err
	}
	return page, nil
}

// Trilaterate runs the estimation. Platform-side refusals come back as *ResultError.
func (u *Upstream) Trilaterate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	taps := make([]string, 0, len(req.Taps))
	for _, t := range req.Taps {
		taps = append(taps, t.String())
	}
	v := url.Values{}
	v.Set("taps", strings.Join(taps, ","))
	if req.LocationID != nil {
		v.Set("location", req.LocationID.String())
		v.Set("floor", req.FloorID.String())
	}

	base := "/dot11/bssids/show/"
	if req.TargetType == TargetClient {
		base = "/dot11/clients/show/"
	}
	ctx = upstream.Endpoint(ctx, base+"{target}/trilateration")
	path := base + url.PathEscape(req.Target) + "/trilateration"

	var res Result
	if err := u.api.Get(ctx, path, v, &res); err != nil {
		if msg, ok := refusal(err); ok {
			return nil, &ResultError{Message: msg}
		}
		return nil, err
	}
	return &res, nil
}

// refusal extracts the platform's explanation from a 4xx trilateration response.
func refusal(err error) (string, bool) {
	var se *upstream.StatusError
	if !errors.As(err, &se) {
		return "", false
	}
	if se.Status != http.StatusBadRequest && se.Status != http.StatusUnprocessableEntity {
		return "", false
	}
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(se.Body), &body) == nil && body.Message != "" {
		return body.Message, true
	}
	if msg := strings.TrimSpace(se.Body); msg != "" {
		return msg, true
	}
	return "", false
}
