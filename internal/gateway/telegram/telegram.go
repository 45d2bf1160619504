// Package telegram is a session gateway over the Telegram Bot API.
//
// Destinations are numeric chat ids ("123456", "-1001234567890") or public
// "@username" handles. A destination is reachable when getChat resolves it.
package telegram

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"campaigner/internal/gateway"
	logx "campaigner/pkg/logx"
)

type Config struct {
	Token          string
	APIURL         string // empty means the public Bot API
	ParseMode      string // "", "HTML", "Markdown", "MarkdownV2"
	DisablePreview bool
	Timeout        time.Duration
}

// Gateway implements gateway.Session.
type Gateway struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	mu      sync.Mutex
	pending map[string]partial // multi-part sends interrupted by an error
}

// partial records how many parts of a message the chat already received.
type partial struct {
	sent  int
	first string
}

var _ gateway.Session = (*Gateway)(nil)

// New authenticates the bot token (getMe) and returns a ready gateway.
func New(cfg Config, log logx.Logger) (*Gateway, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  strings.TrimSpace(cfg.Token),
		URL:    strings.TrimRight(cfg.APIURL, "/"),
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	log.Info("telegram session ready", logx.String("bot", b.Me.Username))
	return &Gateway{cfg: cfg, log: log, bot: b, pending: make(map[string]partial)}, nil
}

// IsReachable reports whether the bot can see the chat. Unknown chats and
// chats that blocked the bot are unreachable; transport errors are returned.
func (g *Gateway) IsReachable(ctx context.Context, destination string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var (
		chat *tele.Chat
		err  error
	)
	if strings.HasPrefix(destination, "@") {
		chat, err = g.bot.ChatByUsername(destination)
	} else {
		id, perr := strconv.ParseInt(strings.TrimSpace(destination), 10, 64)
		if perr != nil {
			return false, nil
		}
		chat, err = g.bot.ChatByID(id)
	}
	if err != nil {
		if isPermanent(err) {
			return false, nil
		}
		return false, err
	}
	return chat != nil, nil
}

// SendText sends body, split into several messages when it exceeds the Bot
// API limit. The id of the first message is returned. When a later part
// fails, the parts already delivered are remembered and a repeated call with
// the same destination and body resumes at the failed part.
func (g *Gateway) SendText(ctx context.Context, destination, body string) (string, error) {
	recipient, err := g.recipient(destination)
	if err != nil {
		return "", gateway.Permanent(err)
	}
	opt := &tele.SendOptions{
		ParseMode:             tele.ParseMode(g.cfg.ParseMode),
		DisableWebPagePreview: g.cfg.DisablePreview,
	}

	parts := splitText(body, textLimit, g.cfg.ParseMode)
	key := partialKey(destination, body)
	p := g.takePartial(key)
	if p.sent > 0 {
		g.log.Debug("resuming multi-part message",
			logx.String("destination", destination),
			logx.Int("part", p.sent+1),
			logx.Int("parts", len(parts)),
		)
	}

	for p.sent < len(parts) {
		if err := ctx.Err(); err != nil {
			g.keepPartial(key, p)
			return "", err
		}
		msg, err := g.bot.Send(recipient, parts[p.sent], opt)
		if err != nil {
			g.keepPartial(key, p)
			if isPermanent(err) {
				err = gateway.Permanent(err)
			}
			return "", err
		}
		if p.sent == 0 {
			p.first = strconv.Itoa(msg.ID)
		}
		p.sent++
	}
	return p.first, nil
}

func partialKey(destination, body string) string {
	sum := sha256.Sum256([]byte(body))
	return destination + ":" + hex.EncodeToString(sum[:12])
}

func (g *Gateway) takePartial(key string) partial {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.pending[key]
	delete(g.pending, key)
	return p
}

// keepPartial stores progress only once a part went out; a failed first part
// leaves nothing to skip.
func (g *Gateway) keepPartial(key string, p partial) {
	if p.sent == 0 {
		return
	}
	g.mu.Lock()
	g.pending[key] = p
	g.mu.Unlock()
}

// chatRef addresses a chat by id or @username; tele.Chat only renders ids.
type chatRef string

func (c chatRef) Recipient() string { return string(c) }

func (g *Gateway) recipient(destination string) (tele.Recipient, error) {
	destination = strings.TrimSpace(destination)
	if strings.HasPrefix(destination, "@") && len(destination) > 1 {
		return chatRef(destination), nil
	}
	if _, err := strconv.ParseInt(destination, 10, 64); err != nil {
		return nil, errors.New("telegram destination must be a chat id or @username: " + destination)
	}
	return chatRef(destination), nil
}

// isPermanent reports Bot API rejections that retrying cannot fix
// (bad request, blocked, kicked).
func isPermanent(err error) bool {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusBadRequest || apiErr.Code == http.StatusForbidden
	}
	return false
}
