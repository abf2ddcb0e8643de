package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/bulwark/internal/protection"
	"github.com/BradenHooton/bulwark/pkg/httpx"
	pkglogger "github.com/BradenHooton/bulwark/pkg/logger"
)

// ErrUnknownAccount may be returned by CredentialVerifier implementations for
// identifiers that do not exist. It is treated as an ordinary failed login so
// that the response cannot be used to enumerate accounts.
var ErrUnknownAccount = errors.New("unknown account")

// CredentialVerifier is the collaborator that performs the actual credential
// check (password hashing and comparison live outside this service).
type CredentialVerifier interface {
	Verify(ctx context.Context, identifier, password string) (bool, error)
}

// LoginRequest is the auth payload accepted by the login endpoint
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=1024"`
}

// AuthHandler handles authentication requests. By the time Login runs, the
// protection middleware chain has already passed the request through the ban,
// rate, and lock gates; the handler's job is to invoke the verifier and
// report the outcome back to the protection core.
type AuthHandler struct {
	guard    *protection.Guard
	verifier CredentialVerifier
	timing   *TimingDelay
	audit    *pkglogger.AuditLogger
	ipConfig *httpx.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(guard *protection.Guard, verifier CredentialVerifier, timing *TimingDelay, audit *pkglogger.AuditLogger, ipConfig *httpx.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		guard:    guard,
		verifier: verifier,
		timing:   timing,
		audit:    audit,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		httpx.WriteBadRequest(w, err.Error())
		return
	}

	clientIP := httpx.ExtractClientIP(r, h.ipConfig)

	ok, err := h.verifier.Verify(r.Context(), req.Identifier, req.Password)
	if err != nil && !errors.Is(err, ErrUnknownAccount) {
		h.logger.Error("credential verification failed", slog.Any("error", err))
		httpx.WriteInternalError(w, "unable to process login")
		return
	}

	if ok {
		h.guard.RecordAuthSuccess(clientIP, req.Identifier)
	} else {
		h.guard.RecordAuthFailure(clientIP, req.Identifier)
	}
	h.audit.LogAuthOutcome(pkglogger.SanitizedIdentifier(req.Identifier), ok)

	// Equalize response timing so "no such account" and "wrong password"
	// are indistinguishable from outside.
	h.timing.WaitFrom(start, ok)

	if !ok {
		httpx.WriteUnauthorized(w, "invalid credentials")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
