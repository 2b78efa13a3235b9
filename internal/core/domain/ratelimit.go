package domain

import "time"

// RateLimitDecision is the answer for one request from an actor.
type RateLimitDecision struct {
	Allowed    bool          `json:"allowed"`
	Banned     bool          `json:"banned"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after"`
}
