package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"nzyme_console/console-go/internal/output"
	"nzyme_console/console-go/internal/session"
	"nzyme_console/console-go/internal/upstream"
)

var Version = "dev"

type CLI struct {
	URL       string        `name:"url" env:"UPSTREAM_URL" default:"http://127.0.0.1:22900/api" help:"Platform REST API base URL."`
	Timeout   time.Duration `default:"10s" help:"Upstream request timeout."`
	TokenFile string        `name:"token-file" env:"CONSOLECTL_TOKEN_FILE" help:"Session token file. Defaults to a file in the user config directory."`
	Output    string        `enum:"pretty,json" default:"pretty" help:"Output format."`
	LogLevel  string        `name:"log-level" enum:"debug,info,warn,error" default:"warn" help:"Log level."`

	Login      LoginCmd      `cmd:"" help:"Log in and store the session token."`
	Logout     LogoutCmd     `cmd:"" help:"Log out and discard the stored token."`
	Whoami     WhoamiCmd     `cmd:"" help:"Show the current session."`
	MFASetup   MFASetupCmd   `cmd:"" name:"mfa-setup" help:"Start or complete second-factor setup."`
	MFAVerify  MFAVerifyCmd  `cmd:"" name:"mfa-verify" help:"Submit a TOTP code."`
	MFARecover MFARecoverCmd `cmd:"" name:"mfa-recover" help:"Submit a second-factor recovery code."`
	DNSLogs    DNSLogsCmd    `cmd:"" name:"dns-logs" help:"Show DNS transaction logs."`
	Floors     FloorsCmd     `cmd:"" help:"Trilaterate a target and browse the floors of its location."`
	Route      RouteCmd      `cmd:"" help:"Resolve a console route to its path."`
	Version    VersionCmd    `cmd:"" help:"Print version."`
}

// app carries what every command needs.
type app struct {
	cli    *CLI
	log    zerolog.Logger
	api    *upstream.Client
	auth   *session.Service
	tokens tokenFile
	in     io.Reader
	out    io.Writer
}

func newApp(cli *CLI) (*app, error) {
	level, err := zerolog.ParseLevel(cli.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	api, err := upstream.New(upstream.Options{BaseURL: cli.URL, Timeout: cli.Timeout, Logger: log})
	if err != nil {
		return nil, err
	}

	path := cli.TokenFile
	if strings.TrimSpace(path) == "" {
		if path, err = defaultTokenPath(); err != nil {
			return nil, err
		}
	}

	return &app{
		cli:    cli,
		log:    log,
		api:    api,
		auth:   session.NewService(api, log),
		tokens: tokenFile{path: path},
		in:     os.Stdin,
		out:    os.Stdout,
	}, nil
}

// authed attaches the stored token to ctx.
func (a *app) authed(ctx context.Context) (context.Context, error) {
	tok, err := a.tokens.Load()
	if err != nil {
		return nil, err
	}
	return upstream.WithToken(ctx, tok), nil
}

// print writes the pretty rendering, or v as JSON when --output=json.
func (a *app) print(pretty string, v any) error {
	if a.cli.Output == "json" {
		s, err := output.RenderJSON(v)
		if err != nil {
			return err
		}
		pretty = s
	}
	_, err := fmt.Fprintln(a.out, pretty)
	return err
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("consolectl"),
		kong.Description("Terminal client for the monitoring console."),
		kong.UsageOnError(),
	)

	a, err := newApp(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, output.Failure(err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(a); err != nil {
		fmt.Fprintln(os.Stderr, output.Failure(err.Error()))
		os.Exit(1)
	}
}
