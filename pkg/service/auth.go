package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

// AuthClaims is what an Authenticator extracts from valid credentials.  It
// travels on the request context so handlers can gate methods on it.
type AuthClaims struct {
	Subject string
	Scopes  []string
	Raw     map[string]any
}

type claimsContextKey struct{}

// WithClaims attaches authenticated claims to a request context.
func WithClaims(ctx context.Context, claims *AuthClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFrom retrieves the claims set by the auth hook, if any.
func ClaimsFrom(ctx context.Context) (*AuthClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*AuthClaims)
	return claims, ok && claims != nil
}

// Authenticated reports whether the request carried valid credentials.
func Authenticated(ctx context.Context) bool {
	_, ok := ClaimsFrom(ctx)
	return ok
}

/*
Authenticator is the auth hook point on inbound requests.  It receives the
raw Authorization header value; an empty value means the request carried no
credentials.  The credential format behind the hook is the integrator's
business.
*/
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (*AuthClaims, *a2a.RpcError)
}

/*
JWTAuthenticator validates HMAC-signed bearer tokens.  Subject and scopes are
lifted from the standard "sub" claim and a space-separated "scope" claim; the
full claim set rides along in Raw.
*/
type JWTAuthenticator struct {
	signingKey []byte
}

func NewJWTAuthenticator(signingKey []byte) *JWTAuthenticator {
	return &JWTAuthenticator{signingKey: signingKey}
}

func (auth *JWTAuthenticator) Authenticate(ctx context.Context, authorization string) (*AuthClaims, *a2a.RpcError) {
	if authorization == "" {
		return nil, a2a.ErrAuthenticationRequired
	}

	tokenStr := strings.TrimPrefix(authorization, "Bearer ")

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return auth.signingKey, nil
	})

	if err != nil || !token.Valid {
		return nil, a2a.ErrAuthenticationRequired.WithMessagef("invalid token: %v", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)

	if !ok {
		return nil, a2a.ErrAuthenticationRequired.WithMessagef("unsupported claim format")
	}

	claims := &AuthClaims{Raw: mapClaims}

	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}

	if scope, ok := mapClaims["scope"].(string); ok && scope != "" {
		claims.Scopes = strings.Fields(scope)
	}

	return claims, nil
}

// IssueToken mints a token the authenticator will accept, used by tests and
// the send command's --token flag helper.
func (auth *JWTAuthenticator) IssueToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(auth.signingKey)
}
