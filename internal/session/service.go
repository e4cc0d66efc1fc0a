package session

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nzyme_console/console-go/internal/upstream"
)

const (
	MessageWrongCredentials = "Wrong credentials. Please try again."
	MessageLoginFailed      = "Login failed. Please try again."
)

const (
	pathSession          = "/system/authentication/session"
	pathMFAInitialize    = "/system/authentication/mfa/setup/initialize"
	pathMFAComplete      = "/system/authentication/mfa/setup/complete"
	pathMFAVerify        = "/system/authentication/mfa/verify"
	pathMFARecoveryLogin = "/system/authentication/mfa/recovery"
)

// LoginError carries the user-facing message for a failed login. Error() returns the
// message verbatim so it can be shown as is.
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string { return e.Message }
func (e *LoginError) Unwrap() error { return e.Err }

// WrongCredentials reports whether err is a rejected-credentials login failure.
func WrongCredentials(err error) bool {
	var le *LoginError
	return errors.As(err, &le) && le.Message == MessageWrongCredentials
}

// API is the subset of the upstream client used here. *upstream.Client satisfies it.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

type UserInfo struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	OrganizationID *string `json:"organization_id"`
	TenantID       *string `json:"tenant_id"`
	IsOrgAdmin     bool    `json:"is_orgadmin"`
	IsSuperAdmin   bool    `json:"is_superadmin"`
}

type Info struct {
	User              UserInfo   `json:"user"`
	MFAValid          bool       `json:"mfa_valid"`
	MFASetup          bool       `json:"mfa_setup"`
	MFAEntryExpiresAt *time.Time `json:"mfa_entry_expires_at"`
}

// MFASetup is the provisioning material for an authenticator app.
type MFASetup struct {
	UserSecret    string   `json:"user_secret"`
	UserEmail     string   `json:"user_email"`
	RecoveryCodes []string `json:"recovery_codes"`
}

// Service wraps the upstream authentication endpoints. Authenticated calls read the
// token attached to the context with upstream.WithToken.
type Service struct {
	api API
	log zerolog.Logger
}

func NewService(api API, log zerolog.Logger) *Service {
	return &Service{api: api, log: log}
}

// CreateSession logs in and returns the upstream session token. Failures are
// *LoginError values: a 403 maps to MessageWrongCredentials, anything else to
// MessageLoginFailed.
func (s *Service) CreateSession(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := s.api.Post(ctx, pathSession, map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		if upstream.IsStatus(err, http.StatusForbidden) {
			return "", &LoginError{Message: MessageWrongCredentials, Err: err}
		}
		s.log.Warn().Err(err).Msg("login request failed")
		return "", &LoginError{Message: MessageLoginFailed, Err: err}
	}
	if strings.TrimSpace(resp.Token) == "" {
		return "", &LoginError{Message: MessageLoginFailed, Err: errors.New("empty token in login response")}
	}
	return resp.Token, nil
}

// DeleteSession asks upstream to drop the session. It never fails: the caller discards
// its local token either way and the upstream session expires on its own.
func (s *Service) DeleteSession(ctx context.Context) {
	if err := s.api.Delete(ctx, pathSession); err != nil {
		s.log.Warn().Err(err).Msg("logout request failed; discarding local session anyway")
	}
}

func (s *Service) FetchSessionInfo(ctx context.Context) (Info, error) {
	var info Info
	if err := s.api.Get(ctx, pathSession, nil, &info); err != nil {
		return Info{}, err
	}
	return info, nil
}

func (s *Service) InitializeMFASetup(ctx context.Context) (MFASetup, error) {
	var setup MFASetup
	if err := s.api.Get(ctx, pathMFAInitialize, nil, &setup); err != nil {
		return MFASetup{}, err
	}
	return setup, nil
}

func (s *Service) FinishMFASetup(ctx context.Context) error {
	return s.api.Post(ctx, pathMFAComplete, struct{}{}, nil)
}

func (s *Service) VerifyMFA(ctx context.Context, code string) error {
	return s.api.Post(ctx, pathMFAVerify, map[string]string{"code": code}, nil)
}

func (s *Service) UseMFARecoveryCode(ctx context.Context, code string) error {
	return s.api.Post(ctx, pathMFARecoveryLogin, map[string]string{"code": code}, nil)
}
