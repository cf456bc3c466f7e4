package auth

import (
	"context"
	"errors"
	"testing"
)

func TestStaticTokens(t *testing.T) {
	a := New(map[string]string{"s3cret": "alice", "other": "bob", "": "nobody"}, false)
	if a.Type() != "static" {
		t.Fatalf("type: %s", a.Type())
	}
	ctx := context.Background()
	acct, err := a.Authenticate(ctx, "s3cret")
	if err != nil || acct != "alice" {
		t.Fatalf("got %q, %v", acct, err)
	}
	for _, tok := range []string{"", "s3cre", "alice"} {
		if _, err := a.Authenticate(ctx, tok); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("token %q: want ErrUnauthenticated, got %v", tok, err)
		}
	}
}

func TestInsecure(t *testing.T) {
	a := New(nil, true)
	acct, err := a.Authenticate(context.Background(), "carol")
	if err != nil || acct != "carol" {
		t.Fatalf("got %q, %v", acct, err)
	}
	if _, err := a.Authenticate(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("empty token accepted")
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
	}
	for in, want := range cases {
		if got := BearerToken(in); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAccountContext(t *testing.T) {
	if _, ok := AccountFrom(context.Background()); ok {
		t.Fatalf("empty context has an account")
	}
	acct, ok := AccountFrom(WithAccount(context.Background(), "alice"))
	if !ok || acct != "alice" {
		t.Fatalf("got %q %v", acct, ok)
	}
}
