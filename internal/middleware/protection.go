package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/BradenHooton/bulwark/internal/protection"
	"github.com/BradenHooton/bulwark/pkg/httpx"
)

// maxPeekBytes bounds how much of the request body the account-lock gate will
// read while extracting the target identifier.
const maxPeekBytes = 1 << 16

// IPBan denies requests from banned source addresses before any other work
// happens. Denials carry the remaining ban time as a retry hint.
func IPBan(guard *protection.Guard, ipConfig *httpx.IPConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := guard.CheckIPBan(httpx.ExtractClientIP(r, ipConfig))
			if !decision.Allowed {
				httpx.WriteDenied(w, decision.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthRateLimit records the attempt against the source IP's sliding window
// and denies once the window is over its limit. The recorded attempt counts
// regardless of whether the credential check later succeeds.
func AuthRateLimit(guard *protection.Guard, ipConfig *httpx.IPConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := guard.CheckAuthRate(httpx.ExtractClientIP(r, ipConfig))
			if !decision.Allowed {
				httpx.WriteDenied(w, decision.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccountLock denies requests whose target account is currently locked. The
// identifier is peeked from the JSON body and the body is restored for the
// downstream handler. A request without a parseable identifier is denied:
// the protection layer fails closed on malformed input.
func AccountLock(guard *protection.Guard) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier, restored, err := peekIdentifier(r)
			if err != nil {
				httpx.WriteDenied(w, 0)
				return
			}
			r.Body = restored

			decision := guard.CheckAccountLock(identifier)
			if !decision.Allowed {
				httpx.WriteDenied(w, decision.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// peekIdentifier reads the target account identifier out of the JSON request
// body without consuming it.
func peekIdentifier(r *http.Request) (identifier string, restored io.ReadCloser, err error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	if err != nil {
		return "", nil, err
	}
	_ = r.Body.Close()

	var payload struct {
		Identifier string `json:"identifier"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil, err
	}

	return payload.Identifier, io.NopCloser(bytes.NewReader(body)), nil
}
