package dispatch

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidConfig = errors.New("invalid dispatch config")
	ErrNoRecipients  = errors.New("no recipients")
)

// DefaultRetryCooldown is the pause between two attempts for the same recipient.
const DefaultRetryCooldown = 2 * time.Second

// Config is the immutable pacing and retry configuration of a Dispatcher.
//
// Delays are applied literally: zero means "no wait". Defaults for omitted
// config keys are filled by the config layer, not here.
type Config struct {
	BatchSize            int
	DelayBetweenMessages time.Duration
	DelayBetweenBatches  time.Duration
	MaxRetries           int
	RetryCooldown        time.Duration

	// RatePerSec additionally caps the send rate across all attempts. 0 disables it.
	RatePerSec int

	// SkipFinalDelay drops the per-message delay after the very last recipient.
	// Off by default: the delay is applied after every send, the last one included.
	SkipFinalDelay bool
}

// DefaultConfig mirrors the values the campaigns have always been run with.
func DefaultConfig() Config {
	return Config{
		BatchSize:            10,
		DelayBetweenMessages: time.Second,
		DelayBetweenBatches:  5 * time.Second,
		MaxRetries:           3,
		RetryCooldown:        DefaultRetryCooldown,
	}
}

func (c Config) Validate() error {
	switch {
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch_size must be >= 1 (got %d)", ErrInvalidConfig, c.BatchSize)
	case c.DelayBetweenMessages < 0:
		return fmt.Errorf("%w: delay_between_messages must be >= 0", ErrInvalidConfig)
	case c.DelayBetweenBatches < 0:
		return fmt.Errorf("%w: delay_between_batches must be >= 0", ErrInvalidConfig)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max_retries must be >= 0 (got %d)", ErrInvalidConfig, c.MaxRetries)
	case c.RetryCooldown < 0:
		return fmt.Errorf("%w: retry_cooldown must be >= 0", ErrInvalidConfig)
	case c.RatePerSec < 0:
		return fmt.Errorf("%w: rate_per_sec must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// EstimatedDuration is the pacing time for n recipients, ignoring gateway
// latency and retries.
func (c Config) EstimatedDuration(n int) time.Duration {
	if n <= 0 || c.BatchSize < 1 {
		return 0
	}
	msgs := n
	if c.SkipFinalDelay {
		msgs--
	}
	return time.Duration(msgs)*c.DelayBetweenMessages + time.Duration(BatchCount(n, c.BatchSize)-1)*c.DelayBetweenBatches
}
