package provider

import (
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/adnify/agentcore/internal/logging"
)

// warnIfBearerTokenNearExpiry inspects a "bearer" credential that looks like
// a JWT (three dot-separated segments) and logs a warning if its exp claim
// has already passed or is within five minutes of doing so (§10's "JWT auth
// mode... needing expiry inspection before use", adapted from the teacher's
// pkg/auth/jwt.go token parsing). The custom backend owns token rotation; a
// static API key that happens not to be a JWT is left alone, and an expired
// token is never rejected here, only logged — the request still goes out
// and the backend's own 401 is the actual signal.
func warnIfBearerTokenNearExpiry(token string) {
	if strings.Count(token, ".") != 2 {
		return
	}
	parsed, err := jwt.Parse([]byte(token), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return
	}
	exp := parsed.Expiration()
	if exp.IsZero() {
		return
	}
	if remaining := time.Until(exp); remaining < 5*time.Minute {
		logging.Logger().Warn("bearer token near or past expiry", "expires_at", exp, "remaining", remaining.String())
	}
}
