package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/acari-app/acari-backend/api/responses"
	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
	"github.com/acari-app/acari-backend/pkg/logger"
)

// rateLimiterStore is satisfied by *redis.Client.
type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthRateLimitPolicy throttles an unauthenticated surface by caller IP and
// by the email address submitted in the JSON body.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: ipLimit, emailLimit: emailLimit}
}

// rule is one counter checked against the limiter.
type rule struct {
	policy   string
	kind     string
	subject  string
	limit    int
	window   time.Duration
	failOpen bool
}

func (r rule) scope() string {
	return r.policy + ":" + r.kind + ":" + r.subject
}

// check reports whether the request may continue. When it returns false the
// response has already been written.
func (r rule) check(ctx context.Context, store rateLimiterStore, logg *logger.Logger, w http.ResponseWriter) bool {
	if r.limit <= 0 || r.subject == "" {
		return true
	}
	allowed, count, err := store.FixedWindowAllow(ctx, r.scope(), int64(r.limit), r.window)
	if err != nil {
		if r.failOpen {
			logg.Warn(logg.WithField(ctx, "policy", r.policy), "rate_limit.unavailable")
			return true
		}
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
		return false
	}
	if allowed {
		return true
	}

	retryAfter := int(r.window.Round(time.Second).Seconds())
	logg.Warn(logg.WithFields(ctx, map[string]any{
		"policy":   r.policy,
		"scope":    r.kind,
		"attempts": count,
		"limit":    r.limit,
	}), "rate_limit.blocked")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").
		WithDetails(map[string]any{"retryAfterSeconds": retryAfter}))
	return false
}

// AuthRateLimit enforces the IP counter first, then the email counter. The
// body is buffered and handed on intact. Limiter errors fail closed.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || policy.window <= 0 || (policy.ipLimit <= 0 && policy.emailLimit <= 0) {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			byIP := rule{policy: policy.name, kind: "ip", subject: ClientIP(r), limit: policy.ipLimit, window: policy.window}
			if !byIP.check(ctx, store, logg, w) {
				return
			}

			if policy.emailLimit > 0 && r.Body != nil {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				byEmail := rule{policy: policy.name, kind: "email", subject: emailDigest(body), limit: policy.emailLimit, window: policy.window}
				if !byEmail.check(ctx, store, logg, w) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit caps each signed-in user, or each client IP when there is no
// user, at limit requests per window. Limiter errors fail open.
func RateLimit(name string, limit int, window time.Duration, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			rl := rule{policy: name, kind: "user", subject: UserIDFromContext(ctx), limit: limit, window: window, failOpen: true}
			if rl.subject == "" {
				rl.kind, rl.subject = "ip", ClientIP(r)
			}
			if rl.check(ctx, store, logg, w) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// ClientIP resolves the caller address. The first well-formed entry of
// X-Forwarded-For wins, then X-Real-IP, then the socket peer.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for part := range strings.SplitSeq(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// emailDigest hashes the lowercased "email" field so raw addresses never
// reach Redis keys or logs.
func emailDigest(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(payload, &body) != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:16])
}
