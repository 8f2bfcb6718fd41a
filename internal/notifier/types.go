package notifier

import "time"

type Config struct {
	// Chat is a numeric chat id or a "@channel" username.
	Chat       string
	ThreadID   int
	RatePerSec int
	// Timeout bounds a single send, including the wait for a rate-limit token.
	Timeout time.Duration
}

// Stats are best-effort counters for logs and tests.
type Stats struct {
	Sent   uint64
	Failed uint64
	LastAt time.Time
}
