package keystore

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-krb5cc/core"
	"github.com/goliatone/go-krb5cc/security"
)

func newTestSealer(t *testing.T) core.SecretProvider {
	t.Helper()
	provider, err := security.NewAppKeySecretProviderFromString("test-keystore-key", security.WithKeyID("keystore-test"), security.WithVersion(1))
	if err != nil {
		t.Fatalf("NewAppKeySecretProviderFromString: %v", err)
	}
	return provider
}

func TestStoreSealsTicketAtRest(t *testing.T) {
	b := New("KEYSTORE", newTestSealer(t))
	state, _ := b.Resolve(context.Background(), "alice")
	owner := core.NewPrincipal("EXAMPLE.COM", "alice")
	b.Init(context.Background(), state, owner)

	server := core.NewPrincipal("EXAMPLE.COM", "krbtgt", "EXAMPLE.COM")
	if err := b.Store(context.Background(), state, core.Credential{Client: owner, Server: server, Ticket: []byte("plaintext-ticket")}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	c := state.(*cache)
	if len(c.sealed) != 1 {
		t.Fatalf("expected one sealed entry, got %d", len(c.sealed))
	}
	if string(c.sealed[0].ticket) == "plaintext-ticket" {
		t.Fatalf("expected ticket bytes to be sealed, found plaintext in storage")
	}
}

func TestRetrieveUnsealsTicket(t *testing.T) {
	b := New("KEYSTORE", newTestSealer(t))
	state, _ := b.Resolve(context.Background(), "alice")
	owner := core.NewPrincipal("EXAMPLE.COM", "alice")
	b.Init(context.Background(), state, owner)

	server := core.NewPrincipal("EXAMPLE.COM", "krbtgt", "EXAMPLE.COM")
	b.Store(context.Background(), state, core.Credential{Client: owner, Server: server, Ticket: []byte("plaintext-ticket")})

	got, err := b.Retrieve(context.Background(), state, core.MatchClient|core.MatchServer, core.Credential{Client: owner, Server: server})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if string(got.Ticket) != "plaintext-ticket" {
		t.Fatalf("expected unsealed ticket bytes, got %q", got.Ticket)
	}
}

func TestRetrieveNotFoundSentinel(t *testing.T) {
	b := New("KEYSTORE", newTestSealer(t))
	state, _ := b.Resolve(context.Background(), "alice")
	owner := core.NewPrincipal("EXAMPLE.COM", "alice")
	b.Init(context.Background(), state, owner)

	_, err := b.Retrieve(context.Background(), state, core.MatchClient, core.Credential{Client: owner})
	if !errors.Is(err, core.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestSequenceIterationUnsealsEachEntry(t *testing.T) {
	b := New("KEYSTORE", newTestSealer(t))
	state, _ := b.Resolve(context.Background(), "alice")
	owner := core.NewPrincipal("EXAMPLE.COM", "alice")
	b.Init(context.Background(), state, owner)
	b.Store(context.Background(), state, core.Credential{Client: owner, Server: core.NewPrincipal("EXAMPLE.COM", "svc1"), Ticket: []byte("t1")})
	b.Store(context.Background(), state, core.Credential{Client: owner, Server: core.NewPrincipal("EXAMPLE.COM", "svc2"), Ticket: []byte("t2")})

	cred, cursor, err := b.GetFirst(context.Background(), state)
	if err != nil {
		t.Fatalf("GetFirst: %v", err)
	}
	if string(cred.Ticket) != "t1" {
		t.Fatalf("expected t1 first, got %q", cred.Ticket)
	}
	cred, cursor, err = b.GetNext(context.Background(), state, cursor)
	if err != nil {
		t.Fatalf("GetNext: %v", err)
	}
	if string(cred.Ticket) != "t2" {
		t.Fatalf("expected t2 second, got %q", cred.Ticket)
	}
	if _, _, err := b.GetNext(context.Background(), state, cursor); !errors.Is(err, core.ErrEndOfSequence) {
		t.Fatalf("expected ErrEndOfSequence, got %v", err)
	}
}

func TestGenNewAssignsDistinctSequentialNames(t *testing.T) {
	b := New("KEYSTORE", newTestSealer(t))
	_, nameA, err := b.GenNew(context.Background())
	if err != nil {
		t.Fatalf("GenNew: %v", err)
	}
	_, nameB, err := b.GenNew(context.Background())
	if err != nil {
		t.Fatalf("GenNew: %v", err)
	}
	if nameA == nameB {
		t.Fatalf("expected distinct names, got %q twice", nameA)
	}
}
