// Package resend is a transactional email gateway over the Resend HTTP API.
package resend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"

	"campaigner/internal/gateway"
	logx "campaigner/pkg/logx"
)

type Config struct {
	APIKey  string
	BaseURL string            // empty means https://api.resend.com/
	Tags    map[string]string // attached to every message
	// Campaign is sent as the X-Campaign header and the "campaign" tag.
	Campaign string
}

// Gateway implements gateway.Transactional.
type Gateway struct {
	client *resend.Client
	cfg    Config
	log    logx.Logger
}

var _ gateway.Transactional = (*Gateway)(nil)

func New(cfg Config, log logx.Logger) (*Gateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("resend api key is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	hc := &http.Client{Timeout: 30 * time.Second, Transport: statusRecorder{next: http.DefaultTransport}}
	client := resend.NewCustomClient(hc, strings.TrimSpace(cfg.APIKey))
	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("resend base url: %w", err)
		}
		client.BaseURL = u
	}
	return &Gateway{client: client, cfg: cfg, log: log}, nil
}

func (g *Gateway) SendEmail(ctx context.Context, e gateway.Email) (string, error) {
	req := &resend.SendEmailRequest{
		From:    e.From,
		To:      []string{e.To},
		Subject: e.Subject,
		Html:    e.HTML,
		Text:    e.Text,
		Headers: map[string]string{
			"X-Entity-Ref-ID": uuid.NewString(),
		},
		Tags: g.tags(),
	}
	if g.cfg.Campaign != "" {
		req.Headers["X-Campaign"] = g.cfg.Campaign
	}

	var status int
	sent, err := g.client.Emails.SendWithContext(context.WithValue(ctx, statusKey{}, &status), req)
	if err != nil {
		g.log.Debug("resend send failed", logx.String("to", e.To), logx.Int("status", status), logx.Err(err))
		err = fmt.Errorf("resend: %w", err)
		if isPermanent(status) {
			err = gateway.Permanent(err)
		}
		return "", err
	}
	return sent.Id, nil
}

// resend-go reports API failures as plain errors, so the response status is
// captured by the transport for the request that asked for it.
type statusKey struct{}

type statusRecorder struct{ next http.RoundTripper }

func (t statusRecorder) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(r)
	if resp != nil {
		if p, ok := r.Context().Value(statusKey{}).(*int); ok {
			*p = resp.StatusCode
		}
	}
	return resp, err
}

// isPermanent reports rejections a resend cannot fix: malformed requests,
// bad credentials and validation errors. 429 and 5xx stay retryable.
func isPermanent(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func (g *Gateway) tags() []resend.Tag {
	tags := make([]resend.Tag, 0, len(g.cfg.Tags)+1)
	if g.cfg.Campaign != "" {
		tags = append(tags, resend.Tag{Name: "campaign", Value: tagValue(g.cfg.Campaign)})
	}
	for k, v := range g.cfg.Tags {
		tags = append(tags, resend.Tag{Name: tagValue(k), Value: tagValue(v)})
	}
	return tags
}

// tagValue keeps the ASCII letters, digits, '_' and '-' Resend accepts in tags.
func tagValue(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return b.String()
}
