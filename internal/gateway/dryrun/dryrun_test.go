package dryrun

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"campaigner/internal/gateway"
)

func TestDryRunSenders(t *testing.T) {
	var buf bytes.Buffer
	g := New(&buf, false)
	ctx := context.Background()

	id, err := gateway.ForTransactional(g, "me@example.com").Send(ctx, gateway.Envelope{Destination: "a@example.com", Subject: "Hi", Body: "<p>x</p>"})
	if err != nil || id != "dryrun-1" {
		t.Fatalf("Send = %q, %v", id, err)
	}
	ok, err := g.IsReachable(ctx, "123")
	if err != nil || !ok {
		t.Fatalf("IsReachable = %v, %v", ok, err)
	}
	if id, _ := g.SendText(ctx, "123", "hello"); id != "dryrun-2" {
		t.Fatalf("SendText id = %q", id)
	}
	if g.Sent() != 2 {
		t.Fatalf("Sent = %d, want 2", g.Sent())
	}
	out := buf.String()
	if !strings.Contains(out, "a@example.com: Hi") || !strings.Contains(out, "-> 123") {
		t.Fatalf("output:\n%s", out)
	}
	if strings.Contains(out, "<p>x</p>") {
		t.Fatal("body printed without full mode")
	}
}
