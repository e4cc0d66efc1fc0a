package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"nzyme_console/console-go/internal/dnslog"
	"nzyme_console/console-go/internal/floorplan"
	"nzyme_console/console-go/internal/output"
	"nzyme_console/console-go/internal/routes"
	"nzyme_console/console-go/internal/tapselect"
	"nzyme_console/console-go/internal/upstream"
)

type LoginCmd struct {
	Username string `arg:"" help:"Account email."`
	Password string `env:"CONSOLE_PASSWORD" help:"Password. Read from stdin when empty."`
}

func (c *LoginCmd) Run(a *app, ctx context.Context) error {
	password := c.Password
	if password == "" {
		fmt.Fprint(a.out, "Password: ")
		line, err := bufio.NewReader(a.in).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	token, err := a.auth.CreateSession(ctx, c.Username, password)
	if err != nil {
		return err
	}
	if err := a.tokens.Save(token); err != nil {
		return err
	}

	info, err := a.auth.FetchSessionInfo(upstream.WithToken(ctx, token))
	if err != nil {
		a.log.Warn().Err(err).Msg("fetch session info after login failed")
		return a.print(output.Success("Logged in."), map[string]any{"logged_in": true})
	}
	msg := output.Success("Logged in as " + info.User.Email + ".")
	if !info.MFAValid {
		if info.MFASetup {
			msg += "\nSecond factor required: consolectl mfa-verify <code>"
		} else {
			msg += "\nSecond factor not set up yet: consolectl mfa-setup"
		}
	}
	return a.print(msg, info)
}

type LogoutCmd struct{}

// Run discards the stored token even when the platform cannot be reached.
func (c *LogoutCmd) Run(a *app, ctx context.Context) error {
	actx, err := a.authed(ctx)
	if errors.Is(err, errNotLoggedIn) {
		return a.print("Not logged in.", map[string]any{"logged_in": false})
	}
	if err != nil {
		return err
	}
	a.auth.DeleteSession(actx)
	if err := a.tokens.Remove(); err != nil {
		return err
	}
	return a.print(output.Success("Logged out."), map[string]any{"logged_in": false})
}

type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(a *app, ctx context.Context) error {
	actx, err := a.authed(ctx)
	if err != nil {
		return err
	}
	info, err := a.auth.FetchSessionInfo(actx)
	if err != nil {
		return fmt.Errorf("fetch session info: %w", err)
	}
	return a.print(output.RenderSession(info.User.Email, info), info)
}

type MFASetupCmd struct {
	Complete bool `help:"Confirm that the authenticator app is set up."`
}

func (c *MFASetupCmd) Run(a *app, ctx context.Context) error {
	actx, err := a.authed(ctx)
	if err != nil {
		return err
	}
	if c.Complete {
		if err := a.auth.FinishMFASetup(actx); err != nil {
			return fmt.Errorf("complete second-factor setup: %w", err)
		}
		return a.print(output.Success("Second factor set up."), map[string]any{"mfa_setup": true})
	}
	setup, err := a.auth.InitializeMFASetup(actx)
	if err != nil {
		return fmt.Errorf("initialize second-factor setup: %w", err)
	}
	return a.print(output.RenderMFASetup(setup), setup)
}

type MFAVerifyCmd struct {
	Code string `arg:"" help:"Six digit TOTP code."`
}

func (c *MFAVerifyCmd) Run(a *app, ctx context.Context) error {
	actx, err := a.authed(ctx)
	if err != nil {
		return err
	}
	if err := a.auth.VerifyMFA(actx, strings.TrimSpace(c.Code)); err != nil {
		return fmt.Errorf("verify code: %w", err)
	}
	return a.print(output.Success("Second factor accepted."), map[string]any{"mfa_valid": true})
}

type MFARecoverCmd struct {
	Code string `arg:"" help:"Recovery code."`
}

func (c *MFARecoverCmd) Run(a *app, ctx context.Context) error {
	actx, err := a.authed(ctx)
	if err != nil {
		return err
	}
	if err := a.auth.UseMFARecoveryCode(actx, strings.TrimSpace(c.Code)); err != nil {
		return fmt.Errorf("use recovery code: %w", err)
	}
	return a.print(output.Success("Recovery code accepted."), map[string]any{"mfa_valid": true})
}

type DNSLogsCmd struct {
	Taps      []string `name:"tap" required:"" help:"Tap UUID (repeatable)."`
	Filters   string   `help:"Filter set in its URL parameter JSON form."`
	TimeRange string   `name:"time-range" help:"Time range JSON. Defaults to the last 24 hours."`
	Limit     int      `default:"25" help:"Rows per page."`
	Offset    int      `default:"0" help:"Row offset."`
	Expand    []string `help:"Row key <transaction id>@<timestamp> whose responses are shown (repeatable)."`
}

func (c *DNSLogsCmd) Run(a *app, ctx context.Context) error {
	actx, err := a.authed(ctx)
	if err != nil {
		return err
	}
	taps, err := parseTaps(c.Taps)
	if err != nil {
		return err
	}
	tr, err := dnslog.ParseTimeRange(c.TimeRange)
	if err != nil {
		return err
	}

	page := dnslog.OpenPage(a.log, routes.New(""), tapselect.New(taps...), c.Filters, time.Now)
	defer page.Close()

	if err := page.SetTimeRange(tr); err != nil {
		return err
	}
	if fs := page.Filters(); fs != nil {
		if err := page.SetFilters(fs); err != nil {
			return fmt.Errorf("invalid filters: %w", err)
		}
	}

	expanded := make(map[dnslog.TransactionKey]bool, len(c.Expand))
	for _, raw := range c.Expand {
		key, err := dnslog.ParseTransactionKey(raw)
		if err != nil {
			return err
		}
		expanded[key] = true
	}
	view := page.Load(actx, dnslog.NewUpstreamSource(a.api), dnslog.LoadOptions{
		Limit:    c.Limit,
		Offset:   c.Offset,
		Expanded: expanded,
	}.Normalized())
	return a.print(output.RenderDNSPage(view), view)
}

type FloorsCmd struct {
	Target     string   `arg:"" help:"BSSID or client MAC address."`
	TargetType string   `name:"target-type" enum:"bssid,client" default:"bssid" help:"Kind of target."`
	Taps       []string `name:"tap" required:"" help:"Contributing tap UUID (repeatable)."`
	Page       int      `default:"1" help:"Floor listing page."`
	Select     string   `help:"Floor UUID to re-run the estimation on."`
}

func (c *FloorsCmd) Run(a *app, ctx context.Context) error {
	actx, err := a.authed(ctx)
	if err != nil {
		return err
	}
	taps, err := parseTaps(c.Taps)
	if err != nil {
		return err
	}
	req := floorplan.Request{TargetType: c.TargetType, Target: c.Target, Taps: taps}
	if err := req.Validate(); err != nil {
		return err
	}

	view, err := browseFloors(actx, a, req, c.Page, c.Select)
	if err != nil {
		return err
	}
	return a.print(output.RenderTrilateration(view), view)
}

// browseFloors drives a floor viewer the way the web console does: show the result,
// open the selector on a page and optionally switch floors.
func browseFloors(ctx context.Context, a *app, req floorplan.Request, page int, selectFloor string) (floorplan.View, error) {
	up := floorplan.NewUpstream(a.api)

	var runErr error
	var v *floorplan.Viewer
	run := func(ctx context.Context, req floorplan.Request) {
		if len(req.Taps) < floorplan.MinTaps {
			return
		}
		res, err := up.Trilaterate(ctx, req)
		var re *floorplan.ResultError
		switch {
		case errors.As(err, &re):
			if err := v.SetError(ctx, re.Message); err != nil {
				a.log.Warn().Err(err).Msg("floor listing failed")
			}
		case err != nil:
			runErr = fmt.Errorf("trilaterate %s: %w", req.Target, err)
		default:
			if err := v.SetData(ctx, res); err != nil {
				a.log.Warn().Err(err).Msg("floor listing failed")
			}
		}
	}

	v = floorplan.NewViewer(floorplan.Options{
		Lister: up,
		Logger: a.log,
		OnFloorSelected: func(ctx context.Context, locationID, floorID uuid.UUID) {
			run(ctx, req.OnFloor(locationID, floorID))
		},
	})
	if err := v.SetTaps(ctx, req.Taps); err != nil {
		return floorplan.View{}, err
	}

	run(ctx, req)
	if runErr != nil {
		return floorplan.View{}, runErr
	}
	if v.State() != floorplan.Ready {
		return v.Render(), nil
	}

	if err := v.ToggleSelector(ctx); err != nil {
		a.log.Warn().Err(err).Msg("floor listing failed")
	}
	if err := v.SetPage(ctx, page); err != nil {
		return floorplan.View{}, err
	}

	if selectFloor != "" {
		id, err := uuid.Parse(selectFloor)
		if err != nil {
			return floorplan.View{}, fmt.Errorf("floor %q is not a UUID", selectFloor)
		}
		if !v.SelectFloor(ctx, id) {
			return floorplan.View{}, fmt.Errorf("floor %s cannot be selected on page %d", id, page)
		}
		if runErr != nil {
			return floorplan.View{}, runErr
		}
	}
	return v.Render(), nil
}

type RouteCmd struct {
	Name   string   `arg:"" help:"Route name, e.g. ethernet.l4.ip."`
	Params []string `arg:"" optional:"" help:"Route parameters in template order."`
	Prefix string   `help:"Mount prefix of the console."`
	List   bool     `help:"List known route names instead."`
}

func (c *RouteCmd) Run(a *app) error {
	if c.List {
		return a.print(strings.Join(routes.Names(), "\n"), routes.Names())
	}
	path, err := routes.New(c.Prefix).Path(c.Name, c.Params...)
	if err != nil {
		if expected, perr := routes.Params(c.Name); perr == nil {
			return fmt.Errorf("%w (expects %s)", err, strings.Join(expected, ", "))
		}
		return err
	}
	return a.print(path, map[string]string{"name": c.Name, "path": path})
}

type VersionCmd struct{}

func (c *VersionCmd) Run(a *app) error {
	_, err := fmt.Fprintln(a.out, Version)
	return err
}

func parseTaps(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, fmt.Errorf("tap %q is not a UUID", part)
			}
			out = append(out, id)
		}
	}
	return out, nil
}
