package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
)

// Anonymous is the actor used when no tokens are configured.
const Anonymous = "anonymous"

type ctxKey string

const (
	actorKey  ctxKey = "actor"
	authedKey ctxKey = "authenticated"
)

// Tokens maps bearer tokens to the actor they identify.
type Tokens map[string]string

// ParseTokens reads comma separated token=actor pairs. A pair without an
// actor uses the token itself as the actor.
func ParseTokens(s string) Tokens {
	t := Tokens{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, actor, ok := strings.Cut(pair, "=")
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if !ok || strings.TrimSpace(actor) == "" {
			actor = token
		}
		t[token] = strings.TrimSpace(actor)
	}
	return t
}

func (t Tokens) lookup(token string) (string, bool) {
	for k, actor := range t {
		if subtle.ConstantTimeCompare([]byte(k), []byte(token)) == 1 {
			return actor, true
		}
	}
	return "", false
}

// Authenticate resolves the bearer token of a request to an actor. With
// required set, a request without a known token is refused with 401. A
// present but unknown token is always refused. With no tokens configured
// every request passes as Anonymous.
func Authenticate(api huma.API, tokens Tokens, required bool) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		r, w := humachi.Unwrap(ctx)
		if len(tokens) == 0 {
			r = r.WithContext(WithActor(r.Context(), Anonymous, false))
			next(humachi.NewContext(ctx.Operation(), r, w))
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			if required {
				_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "unauthorized")
				return
			}
			r = r.WithContext(WithActor(r.Context(), Anonymous, false))
			next(humachi.NewContext(ctx.Operation(), r, w))
			return
		}
		actor, ok := tokens.lookup(strings.TrimPrefix(auth, "Bearer "))
		if !ok {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "unauthorized")
			return
		}
		r = r.WithContext(WithActor(r.Context(), actor, true))
		next(humachi.NewContext(ctx.Operation(), r, w))
	}
}

// WithActor stores the acting user in ctx.
func WithActor(ctx context.Context, actor string, authenticated bool) context.Context {
	ctx = context.WithValue(ctx, actorKey, actor)
	return context.WithValue(ctx, authedKey, authenticated)
}

// ActorFromContext returns the acting user, or Anonymous.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey).(string); ok && v != "" {
		return v
	}
	return Anonymous
}

// Authenticated reports whether the request carried a known token.
func Authenticated(ctx context.Context) bool {
	v, _ := ctx.Value(authedKey).(bool)
	return v
}
