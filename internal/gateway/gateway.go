// Package gateway defines the message gateways a campaign is delivered through.
//
// Two capability variants exist:
//
//   - Transactional: stateless email-style APIs (authenticated once, then one
//     call per message). See the resend and smtp subpackages.
//   - Session: stateful chat sessions that must confirm a destination is
//     reachable before sending. See the telegram subpackage.
//
// The dispatcher only consumes Sender (and optionally Prechecker); the
// ForTransactional and ForSession adapters lift each variant into that shape.
package gateway

//go:generate mockgen -source=gateway.go -destination=mocks/gateway_mock.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
)

// Envelope is one rendered message for one destination.
type Envelope struct {
	Destination string
	Name        string
	Subject     string
	Body        string
	// Text is an optional plain-text alternative (email gateways only).
	Text string
}

// Sender delivers one envelope and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, env Envelope) (string, error)
}

// Prechecker is implemented by senders whose destinations must be checked
// before any delivery attempt. An unreachable destination is a terminal
// failure and is never retried.
type Prechecker interface {
	Reachable(ctx context.Context, destination string) (bool, error)
}

// Email is the payload of a transactional send.
type Email struct {
	To      string
	From    string
	Subject string
	HTML    string
	Text    string
}

// Transactional is a stateless email-style gateway.
type Transactional interface {
	SendEmail(ctx context.Context, e Email) (string, error)
}

// Session is a stateful chat gateway.
type Session interface {
	IsReachable(ctx context.Context, destination string) (bool, error)
	SendText(ctx context.Context, destination, body string) (string, error)
}

var (
	// ErrUnreachable is recorded when a session gateway reports that a destination
	// cannot receive messages.
	ErrUnreachable = errors.New("destination not reachable")
	// ErrPermanent marks failures that retrying cannot fix (bad address, blocked bot).
	ErrPermanent = errors.New("permanent delivery failure")
)

// Permanent wraps err so errors.Is(err, ErrPermanent) reports true.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// ForTransactional adapts t into a Sender that always sends as from.
func ForTransactional(t Transactional, from string) Sender {
	return transactionalSender{t: t, from: from}
}

type transactionalSender struct {
	t    Transactional
	from string
}

func (s transactionalSender) Send(ctx context.Context, env Envelope) (string, error) {
	return s.t.SendEmail(ctx, Email{
		To:      env.Destination,
		From:    s.from,
		Subject: env.Subject,
		HTML:    env.Body,
		Text:    env.Text,
	})
}

// ForSession adapts s into a Sender that also implements Prechecker.
func ForSession(s Session) Sender {
	return sessionSender{s: s}
}

type sessionSender struct {
	s Session
}

func (s sessionSender) Send(ctx context.Context, env Envelope) (string, error) {
	return s.s.SendText(ctx, env.Destination, env.Body)
}

func (s sessionSender) Reachable(ctx context.Context, destination string) (bool, error) {
	return s.s.IsReachable(ctx, destination)
}
