// Package auth resolves caller credentials to the account a request acts
// for. Transports authenticate every mutating call before it reaches the
// datalog service, which trusts the account it is handed.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
)

// ErrUnauthenticated is returned when credentials are missing or unknown.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Authenticator validates a bearer token and returns the account it names.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
	// Type returns the authentication scheme, e.g. "static" or "insecure".
	Type() string
}

// New returns an InsecureAuthenticator when insecure is set and a
// StaticTokens authenticator otherwise.
func New(tokens map[string]string, insecure bool) Authenticator {
	if insecure {
		return InsecureAuthenticator{}
	}
	return NewStaticTokens(tokens)
}

// StaticTokens maps fixed tokens to accounts.
type StaticTokens struct {
	tokens []tokenEntry
}

type tokenEntry struct {
	token   []byte
	account string
}

func NewStaticTokens(tokens map[string]string) *StaticTokens {
	s := &StaticTokens{}
	for tok, acct := range tokens {
		if tok == "" || acct == "" {
			continue
		}
		s.tokens = append(s.tokens, tokenEntry{token: []byte(tok), account: acct})
	}
	return s
}

// Authenticate compares token against every configured token in constant
// time.
func (s *StaticTokens) Authenticate(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}
	account := ""
	for _, e := range s.tokens {
		if subtle.ConstantTimeCompare(e.token, []byte(token)) == 1 {
			account = e.account
		}
	}
	if account == "" {
		return "", ErrUnauthenticated
	}
	return account, nil
}

func (s *StaticTokens) Type() string { return "static" }

// InsecureAuthenticator treats the bearer token as the account name. Use it
// for local development only.
type InsecureAuthenticator struct{}

func (InsecureAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}

func (InsecureAuthenticator) Type() string { return "insecure" }

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. It returns "" when the scheme is not Bearer.
func BearerToken(header string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

type accountKey struct{}

// WithAccount stores the authenticated account on ctx.
func WithAccount(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// AccountFrom returns the account stored by WithAccount.
func AccountFrom(ctx context.Context) (string, bool) {
	acct, ok := ctx.Value(accountKey{}).(string)
	return acct, ok && acct != ""
}

var (
	_ Authenticator = (*StaticTokens)(nil)
	_ Authenticator = InsecureAuthenticator{}
)
