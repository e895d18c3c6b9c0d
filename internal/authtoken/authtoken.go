// Package authtoken issues and verifies the JWTs that authenticate webhook
// and cache invalidation requests.
// The subject of a token is the personal access token that is used to
// access the Azure DevOps API on behalf of the caller.
package authtoken

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var ErrMissingToken = errors.New("authorization header does not contain a bearer token")

// Authority issues and verifies HS256 signed tokens.
type Authority struct {
	key      []byte
	issuer   string
	validity time.Duration
}

func New(signingKey, issuer string, validity time.Duration) *Authority {
	return &Authority{
		key:      []byte(signingKey),
		issuer:   issuer,
		validity: validity,
	}
}

// Issue returns a signed token for subject.
func (a *Authority) Issue(subject string) (string, error) {
	now := time.Now()

	b := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(a.validity))
	if a.issuer != "" {
		b = b.Issuer(a.issuer)
	}

	tok, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("building token failed: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, a.key))
	if err != nil {
		return "", fmt.Errorf("signing token failed: %w", err)
	}

	return string(signed), nil
}

// Verify validates the signature, expiration and issuer of token and
// returns its subject.
func (a *Authority) Verify(token string) (string, error) {
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, a.key),
		jwt.WithValidate(true),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	tok, err := jwt.ParseString(token, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	if tok.Subject() == "" {
		return "", errors.New("invalid token: subject is empty")
	}

	return tok.Subject(), nil
}

// BearerToken returns the token from the Authorization header of req.
func BearerToken(req *http.Request) (string, error) {
	hdr := req.Header.Get("Authorization")

	const prefix = "bearer "
	if len(hdr) <= len(prefix) || !strings.EqualFold(hdr[:len(prefix)], prefix) {
		return "", ErrMissingToken
	}

	return strings.TrimSpace(hdr[len(prefix):]), nil
}

type ctxKey struct{}

// ContextWithSubject returns a copy of ctx that carries subject.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKey{}, subject)
}

// SubjectFromContext returns the subject stored by ContextWithSubject.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxKey{}).(string)
	return s, ok
}
