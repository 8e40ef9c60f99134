package graph

import (
	"context"
	"errors"
	"testing"
)

func TestReferralGraphReferrerOf(t *testing.T) {
	client := NewMemoryClient()
	client.PushReadResult(Result{Records: []Record{{"referrer_id": int64(42)}}})
	client.PushReadResult(Result{})

	g := NewReferralGraph(client)
	got, err := g.ReferrerOf(context.Background(), 7)
	if err != nil {
		t.Fatalf("referrer lookup failed: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected referrer 42, got %d", got)
	}
	none, err := g.ReferrerOf(context.Background(), 42)
	if err != nil || none != 0 {
		t.Fatalf("expected no referrer, got %d err=%v", none, err)
	}

	calls := client.ReadCalls()
	if len(calls) != 2 || calls[0].Params["id"] != int64(7) {
		t.Fatalf("unexpected read calls: %+v", calls)
	}
}

func TestReferralGraphLinkReferrer(t *testing.T) {
	client := NewMemoryClient()
	g := NewReferralGraph(client)
	if err := g.LinkReferrer(context.Background(), 2, 1); err != nil {
		t.Fatalf("link referrer failed: %v", err)
	}
	if err := g.LinkReferrer(context.Background(), 1, 0); err != nil {
		t.Fatalf("upsert root failed: %v", err)
	}
	calls := client.WriteCalls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 write calls, got %d", len(calls))
	}
	if calls[0].Params["referrer_id"] != int64(1) || calls[1].Query != upsertMemberCypher {
		t.Fatalf("unexpected write calls: %+v", calls)
	}
}

func TestReferralGraphPropagatesError(t *testing.T) {
	boom := errors.New("bolt unavailable")
	g := NewReferralGraph(NewMemoryClient().WithError(boom))
	if _, err := g.ReferrerOf(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
