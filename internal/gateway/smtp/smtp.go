// Package smtp is a transactional email gateway over a pooled SMTP connection.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	netsmtp "net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/knadh/smtppool"

	"campaigner/internal/gateway"
	logx "campaigner/pkg/logx"
)

type Config struct {
	Host               string
	Port               int
	Username           string
	Password           string
	MaxConns           int
	SendTimeout        time.Duration
	InsecureSkipVerify bool
	// TLS enables TLS on the connection via TLSConfig. Leave false for plain
	// SMTP (local relays, tests).
	TLS bool
}

// Gateway implements gateway.Transactional.
type Gateway struct {
	pool *smtppool.Pool
	cfg  Config
	log  logx.Logger
}

var _ gateway.Transactional = (*Gateway)(nil)

func New(cfg Config, log logx.Logger) (*Gateway, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is empty")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	var auth netsmtp.Auth
	if cfg.Username != "" || cfg.Password != "" {
		auth = netsmtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	opt := smtppool.Opt{
		Host:            cfg.Host,
		Port:            cfg.Port,
		MaxConns:        cfg.MaxConns,
		IdleTimeout:     cfg.SendTimeout,
		PoolWaitTimeout: cfg.SendTimeout,
		Auth:            auth,
	}
	if cfg.TLS {
		opt.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			ServerName:         cfg.Host,
		}
	}
	pool, err := smtppool.New(opt)
	if err != nil {
		return nil, fmt.Errorf("smtp pool %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Gateway{pool: pool, cfg: cfg, log: log}, nil
}

// SendEmail returns the generated Message-Id; SMTP servers do not report one.
func (g *Gateway) SendEmail(ctx context.Context, e gateway.Email) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := "<" + uuid.NewString() + "@" + g.cfg.Host + ">"
	msg := smtppool.Email{
		From:    e.From,
		To:      []string{e.To},
		Subject: e.Subject,
		HTML:    []byte(e.HTML),
		Headers: textproto.MIMEHeader{"Message-Id": {id}},
	}
	if e.Text != "" {
		msg.Text = []byte(e.Text)
	}
	if err := g.pool.Send(msg); err != nil {
		g.log.Debug("smtp send failed", logx.String("to", e.To), logx.Err(err))
		return "", fmt.Errorf("smtp: %w", err)
	}
	return id, nil
}

func (g *Gateway) Close() error {
	g.pool.Close()
	return nil
}
