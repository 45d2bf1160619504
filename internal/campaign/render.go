package campaign

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"campaigner/internal/gateway"
)

//go:embed templates/default.html
var defaultHTML string

// DefaultTemplate returns the built-in HTML layout used when a campaign has
// no template of its own.
func DefaultTemplate() string { return defaultHTML }

// Format selects which template produces Envelope.Body.
type Format string

const (
	FormatHTML Format = "html" // email gateways
	FormatText Format = "text" // chat gateways
)

// Definition is everything needed to render one campaign.
type Definition struct {
	Name    string
	Subject string // may contain template actions
	Sender  string
	HTML    string // html/template source; DefaultTemplate() when empty
	Text    string // text/template source
	Params  map[string]string
	Format  Format
	// Strict makes references to unknown params a render error.
	Strict bool
}

// TemplateData is the value templates are executed against.
type TemplateData struct {
	Name        string
	Destination string
	Group       string
	Subject     string
	Sender      string
	Campaign    string
	Params      map[string]string
}

// Renderer turns a Recipient into an Envelope. It is safe for concurrent use.
type Renderer struct {
	def     Definition
	subject *texttemplate.Template
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

var funcs = map[string]any{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
}

// NewRenderer parses every template up front so syntax errors surface before
// any send.
func NewRenderer(def Definition) (*Renderer, error) {
	if def.Format == "" {
		def.Format = FormatHTML
	}
	option := "missingkey=default"
	if def.Strict {
		option = "missingkey=error"
	}

	r := &Renderer{def: def}
	var err error
	if r.subject, err = texttemplate.New("subject").Funcs(funcs).Option(option).Parse(def.Subject); err != nil {
		return nil, fmt.Errorf("parse subject: %w", err)
	}

	switch def.Format {
	case FormatHTML:
		src := def.HTML
		if strings.TrimSpace(src) == "" {
			src = defaultHTML
		}
		if r.html, err = htmltemplate.New("html").Funcs(funcs).Option(option).Parse(src); err != nil {
			return nil, fmt.Errorf("parse html template: %w", err)
		}
	case FormatText:
		if strings.TrimSpace(def.Text) == "" {
			return nil, errors.New("text format requires a text template")
		}
	default:
		return nil, fmt.Errorf("unknown message format %q", def.Format)
	}

	if strings.TrimSpace(def.Text) != "" {
		if r.text, err = texttemplate.New("text").Funcs(funcs).Option(option).Parse(def.Text); err != nil {
			return nil, fmt.Errorf("parse text template: %w", err)
		}
	}
	return r, nil
}

// Render executes the templates for rc. It has no side effects.
func (r *Renderer) Render(rc Recipient) (gateway.Envelope, error) {
	data := TemplateData{
		Name:        rc.Name,
		Destination: rc.Destination,
		Group:       rc.Group,
		Sender:      r.def.Sender,
		Campaign:    r.def.Name,
		Params:      r.def.Params,
	}
	if data.Params == nil {
		data.Params = map[string]string{}
	}

	subject, err := execText(r.subject, data)
	if err != nil {
		return gateway.Envelope{}, fmt.Errorf("subject: %w", err)
	}
	data.Subject = strings.TrimSpace(subject)

	env := gateway.Envelope{Destination: rc.Destination, Name: rc.Name, Subject: data.Subject}
	if r.text != nil {
		if env.Text, err = execText(r.text, data); err != nil {
			return gateway.Envelope{}, fmt.Errorf("text: %w", err)
		}
	}
	switch r.def.Format {
	case FormatText:
		env.Body = env.Text
	default:
		var buf bytes.Buffer
		if err := r.html.Execute(&buf, data); err != nil {
			return gateway.Envelope{}, fmt.Errorf("html: %w", err)
		}
		env.Body = buf.String()
	}
	return env, nil
}

func execText(t *texttemplate.Template, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
