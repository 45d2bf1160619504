package dispatch

import (
	"time"

	"campaigner/internal/campaign"
)

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

func (o Outcome) String() string {
	if o == OutcomeSuccess {
		return "success"
	}
	return "failure"
}

// Result is the terminal outcome for one recipient. Exactly one Result is
// produced per input recipient.
type Result struct {
	Recipient campaign.Recipient
	Outcome   Outcome
	MessageID string // set on success
	Error     string // set on failure; the last attempt's error
	Attempts  int    // send calls made; 0 when no send was attempted
	At        time.Time
}

func (r Result) Succeeded() bool { return r.Outcome == OutcomeSuccess }

type Failure struct {
	Destination string
	Name        string
	Error       string
}

// Summary is what Run reports back.
type Summary struct {
	RunID        string
	Campaign     string
	Total        int
	Batches      int
	SuccessCount int
	Failures     []Failure
	Results      []Result
	StartedAt    time.Time
	Duration     time.Duration
}

func (s Summary) FailureCount() int { return len(s.Failures) }

// SuccessRate is the share of successful recipients in percent.
func (s Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.Total) * 100
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	if r.Succeeded() {
		s.SuccessCount++
		return
	}
	s.Failures = append(s.Failures, Failure{Destination: r.Recipient.Destination, Name: r.Recipient.Name, Error: r.Error})
}
