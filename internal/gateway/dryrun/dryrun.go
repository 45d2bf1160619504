// Package dryrun is a gateway that prints rendered messages instead of
// delivering them.
package dryrun

import (
	"context"
	"fmt"
	"io"
	"sync"

	"campaigner/internal/gateway"
)

// Gateway implements gateway.Transactional and gateway.Session. Every
// destination is reachable and every send succeeds with a sequential id.
type Gateway struct {
	mu   sync.Mutex
	w    io.Writer
	seq  int
	full bool
}

var (
	_ gateway.Transactional = (*Gateway)(nil)
	_ gateway.Session       = (*Gateway)(nil)
)

// New writes one line per message to w; full additionally dumps the body.
func New(w io.Writer, full bool) *Gateway {
	if w == nil {
		w = io.Discard
	}
	return &Gateway{w: w, full: full}
}

func (g *Gateway) SendEmail(_ context.Context, e gateway.Email) (string, error) {
	return g.emit(e.To, e.Subject, e.HTML), nil
}

func (g *Gateway) IsReachable(context.Context, string) (bool, error) { return true, nil }

func (g *Gateway) SendText(_ context.Context, destination, body string) (string, error) {
	return g.emit(destination, "", body), nil
}

// Sent returns how many messages were emitted.
func (g *Gateway) Sent() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

func (g *Gateway) emit(to, subject, body string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("dryrun-%d", g.seq)
	if subject != "" {
		fmt.Fprintf(g.w, "[dry-run] %s -> %s: %s (%d bytes)\n", id, to, subject, len(body))
	} else {
		fmt.Fprintf(g.w, "[dry-run] %s -> %s (%d bytes)\n", id, to, len(body))
	}
	if g.full {
		fmt.Fprintln(g.w, body)
	}
	return id
}
