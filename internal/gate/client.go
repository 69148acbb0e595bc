package gate

import (
	"net/http"
	"time"
)

// Chain wires the transports in the order the API expects:
// RequestGate -> ChallengeGate -> base.
type Chain struct {
	Request   *RequestGate
	Challenge *ChallengeGate
}

// NewChain builds the gate chain over base. opts.Next is replaced by the challenge gate.
func NewChain(base http.RoundTripper, opts Options, challenge ChallengeOptions) (*Chain, error) {
	challenge.Next = base
	cg := NewChallengeGate(challenge)

	opts.Next = cg
	rg, err := New(opts)
	if err != nil {
		return nil, err
	}
	return &Chain{Request: rg, Challenge: cg}, nil
}

// Client returns an http.Client that sends through the chain. The gate owns cookies, so
// the client has no jar of its own.
func (c *Chain) Client(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: c.Request,
		Timeout:   timeout,
	}
}

// Close releases the locale subscription.
func (c *Chain) Close() error {
	if c == nil || c.Request == nil {
		return nil
	}
	return c.Request.Close()
}
