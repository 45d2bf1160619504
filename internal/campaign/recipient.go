package campaign

import "strings"

// Recipient is one delivery target. Destination is an email address, a phone
// number or a chat id depending on the gateway. Duplicates are kept: a
// destination listed twice is sent twice.
type Recipient struct {
	Destination string `json:"destination" yaml:"destination"`
	Name        string `json:"name" yaml:"name"`
	Group       string `json:"group,omitempty" yaml:"group,omitempty"`
}

// Label is the human-facing identifier used in progress lines.
func (r Recipient) Label() string {
	if n := strings.TrimSpace(r.Name); n != "" {
		return n + " <" + r.Destination + ">"
	}
	return r.Destination
}
