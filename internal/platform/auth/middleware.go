package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/platform/httpx"
	"github.com/techfy/storefront-api/internal/platform/requestctx"
)

var errCredentialMissing = errors.New("auth: credential missing")

// Authenticator resolves the caller identity from bearer credentials.
type Authenticator struct {
	verifier TokenVerifier
	timeout  time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithVerificationTimeout bounds each credential verification.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator around verifier.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier: verifier,
		timeout:  defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Resolve verifies the Authorization header value and returns the identity it names.
func (a *Authenticator) Resolve(ctx context.Context, header string) (*Identity, error) {
	token, ok := extractBearerToken(header)
	if !ok {
		return nil, errCredentialMissing
	}
	if a == nil || a.verifier == nil {
		return nil, ErrTokenInvalid
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	claims, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	uid := strings.TrimSpace(claims.Subject)
	if uid == "" {
		return nil, ErrTokenInvalid
	}
	role, ok := domain.ParseRole(claims.Role)
	if !ok {
		return nil, ErrTokenInvalid
	}
	return &Identity{
		UID:   uid,
		Email: strings.ToLower(strings.TrimSpace(claims.Email)),
		Role:  role,
	}, nil
}

// Optional attaches the identity when a valid credential is present and never fails the request.
func (a *Authenticator) Optional() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity, err := a.Resolve(ctx, r.Header.Get("Authorization"))
			if err != nil {
				if !errors.Is(err, errCredentialMissing) {
					requestctx.Logger(ctx).Debug("ignoring unusable credential", zap.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(attach(ctx, identity)))
		})
	}
}

// Required rejects requests without a valid credential with 401.
func (a *Authenticator) Required() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := IdentityFromContext(ctx); ok {
				next.ServeHTTP(w, r)
				return
			}
			identity, err := a.Resolve(ctx, r.Header.Get("Authorization"))
			if err != nil {
				respondVerificationError(ctx, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(attach(ctx, identity)))
		})
	}
}

// RequireCapability is the role gate: 401 without an identity, 403 when the caller's role does
// not hold capability. It must run after Optional or Required.
func RequireCapability(capability domain.Capability) func(http.Handler) http.Handler {
	return gate(func(identity *Identity) bool {
		return identity.Can(capability)
	})
}

func gate(permit func(*Identity) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity, ok := IdentityFromContext(ctx)
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
				return
			}
			if !permit(identity) {
				httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient role for this action", http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// attach stores identity and tags the request logger with the caller.
func attach(ctx context.Context, identity *Identity) context.Context {
	logger := requestctx.Logger(ctx).With(
		zap.String("user_id", identity.UID),
		zap.String("role", string(identity.Role)),
	)
	return WithIdentity(requestctx.WithLogger(ctx, logger), identity)
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondVerificationError(ctx context.Context, w http.ResponseWriter, err error) {
	message := "authentication required"
	switch {
	case errors.Is(err, errCredentialMissing):
		message = "authorization header missing or invalid"
	case errors.Is(err, ErrTokenExpired):
		message = "token expired"
	case errors.Is(err, ErrTokenInvalid):
		message = "token invalid"
	default:
		requestctx.Logger(ctx).Warn("credential verification failed", zap.Error(err))
	}
	httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", message, http.StatusUnauthorized))
}
