package goToken

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/store"
)

func newAuditEngine(t *testing.T, sink AuditSink) *Engine {
	t.Helper()
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false

	engine, err := New().
		WithConfig(cfg).
		WithStore(store.NewMemoryStore()).
		WithAuditSink(sink).
		WithCredentialValidator(mapValidator{"a@b.com": "hunter22"}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return engine
}

func collectEvents(t *testing.T, sink *ChannelSink, n int) []AuditEvent {
	t.Helper()
	out := make([]AuditEvent, 0, n)
	deadline := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case ev := <-sink.Events():
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("timed out after %d of %d audit events", len(out), n)
		}
	}
	return out
}

func TestAuditLifecycleEvents(t *testing.T) {
	sink := NewChannelSink(64)
	engine := newAuditEngine(t, sink)
	defer engine.Close()

	ctx := WithClientIP(context.Background(), "198.51.100.9")
	pair, err := engine.IssuePair(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	renewed, err := engine.Renew(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	_, _ = engine.Renew(ctx, pair.RefreshToken)
	_, _ = engine.Revoke(ctx, renewed.RefreshToken)
	_, _ = engine.Revoke(ctx, renewed.RefreshToken)

	events := collectEvents(t, sink, 5)
	wantTypes := []string{AuditTokenIssued, AuditRenewSuccess, AuditRenewRejected, AuditRevokeSuccess, AuditRevokeNothing}
	for i, want := range wantTypes {
		if events[i].EventType != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, events[i].EventType)
		}
		if events[i].IP != "198.51.100.9" {
			t.Fatalf("event %d: missing client ip", i)
		}
		if events[i].Timestamp.IsZero() {
			t.Fatalf("event %d: missing timestamp", i)
		}
	}
	if !events[1].Success || events[1].Metadata["previous_token_id"] == "" {
		t.Fatalf("renew success event incomplete: %+v", events[1])
	}
	if events[2].Success || events[2].Reason != string(auditReasonRevoked) {
		t.Fatalf("reuse must be audited as revoked, got %+v", events[2])
	}
	if events[4].Reason != string(auditReasonNothingToRevoke) {
		t.Fatalf("unexpected revoke reason %q", events[4].Reason)
	}
}

func TestAuditVerificationReason(t *testing.T) {
	sink := NewChannelSink(8)
	engine := newAuditEngine(t, sink)
	defer engine.Close()

	_, _ = engine.Renew(context.Background(), "garbage")

	ev := collectEvents(t, sink, 1)[0]
	if ev.EventType != AuditRenewRejected || ev.Reason != "malformed" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestAuditLoginEvents(t *testing.T) {
	sink := NewChannelSink(8)
	engine := newAuditEngine(t, sink)
	defer engine.Close()

	_, _ = engine.Login(context.Background(), "a@b.com", "wrong")
	if _, err := engine.Login(context.Background(), "a@b.com", "hunter22"); err != nil {
		t.Fatalf("login: %v", err)
	}

	events := collectEvents(t, sink, 2)
	if events[0].EventType != AuditLoginFailure || events[0].Reason != string(auditReasonInvalidCredentials) {
		t.Fatalf("unexpected failure event %+v", events[0])
	}
	if events[0].Metadata["identifier"] != "a@b.com" {
		t.Fatalf("failure event missing identifier: %+v", events[0])
	}
	if events[1].EventType != AuditLoginSuccess || events[1].Subject != "a@b.com" || events[1].TokenID == "" {
		t.Fatalf("unexpected success event %+v", events[1])
	}
}

func TestAuditJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	engine := newAuditEngine(t, NewJSONWriterSink(&buf))

	if _, err := engine.IssuePair(context.Background(), "a@b.com"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	engine.Close()

	line := strings.TrimSpace(buf.String())
	var ev AuditEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	if ev.EventType != AuditTokenIssued || ev.Subject != "a@b.com" || !ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := NewChannelSink(8)
	engine, err := New().
		WithConfig(testConfig()).
		WithStore(store.NewMemoryStore()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	if _, err := engine.IssuePair(context.Background(), "a@b.com"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	if engine.AuditDropped() != 0 {
		t.Fatal("disabled audit drops nothing")
	}
}
