package gate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// Default second-factor headers.
const (
	DefaultChallengeHeader     = "X-2FA-Required"
	DefaultChallengeCodeHeader = "X-2FA-Code"
)

// Challenge outcomes reported to ChallengeOptions.OnOutcome.
const (
	ChallengeResolved  = "resolved"
	ChallengeDismissed = "dismissed"
	ChallengeFailed    = "failed"
	ChallengeBusy      = "busy"
)

// Challenge describes a second-factor prompt surfaced to the user.
type Challenge struct {
	Method  string
	URL     string
	Channel string
	Message string
}

// Prompter asks the user for a second-factor code. Returning ErrChallengeDismissed (or any
// error) abandons the parked request.
type Prompter interface {
	PromptCode(ctx context.Context, challenge Challenge) (string, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, challenge Challenge) (string, error)

// PromptCode calls f.
func (f PrompterFunc) PromptCode(ctx context.Context, challenge Challenge) (string, error) {
	return f(ctx, challenge)
}

// ChallengeOptions configures a ChallengeGate.
type ChallengeOptions struct {
	Next       http.RoundTripper
	Prompter   Prompter
	Header     string
	CodeHeader string
	Logger     *logging.Logger
	OnOutcome  func(outcome string)
}

// ChallengeGate parks at most one request on a second-factor prompt. A challenge that
// arrives while the slot is taken is returned to its caller unchanged.
type ChallengeGate struct {
	next       http.RoundTripper
	prompter   Prompter
	header     string
	codeHeader string
	logger     *logging.Logger
	onOutcome  func(string)

	mu     sync.Mutex
	parked bool
}

// NewChallengeGate builds a ChallengeGate. A nil Prompter disables parking.
func NewChallengeGate(opts ChallengeOptions) *ChallengeGate {
	next := opts.Next
	if next == nil {
		next = http.DefaultTransport
	}
	header := strings.TrimSpace(opts.Header)
	if header == "" {
		header = DefaultChallengeHeader
	}
	codeHeader := strings.TrimSpace(opts.CodeHeader)
	if codeHeader == "" {
		codeHeader = DefaultChallengeCodeHeader
	}
	return &ChallengeGate{
		next:       next,
		prompter:   opts.Prompter,
		header:     header,
		codeHeader: codeHeader,
		logger:     opts.Logger,
		onOutcome:  opts.OnOutcome,
	}
}

// Parked reports whether a request currently occupies the challenge slot.
func (c *ChallengeGate) Parked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parked
}

// RoundTrip implements http.RoundTripper.
func (c *ChallengeGate) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.next.RoundTrip(req)
	if err != nil || c.prompter == nil || !c.isChallenge(resp) {
		return resp, err
	}

	if !c.park() {
		c.report(ChallengeBusy)
		return resp, nil
	}
	defer c.unpark()

	challenge := Challenge{
		Method:  req.Method,
		URL:     req.URL.String(),
		Channel: resp.Header.Get(c.header),
		Message: challengeMessage(resp),
	}
	_ = resp.Body.Close()

	if c.logger != nil {
		c.logger.Info("Second-factor code required",
			zap.String("method", challenge.Method),
			zap.String("url", challenge.URL),
			zap.String("channel", challenge.Channel))
	}

	code, err := c.prompter.PromptCode(req.Context(), challenge)
	if err == nil && strings.TrimSpace(code) == "" {
		err = ErrChallengeDismissed
	}
	if err == nil {
		err = req.Context().Err()
	}
	if err != nil {
		if errors.Is(err, ErrChallengeDismissed) || errors.Is(err, context.Canceled) {
			c.report(ChallengeDismissed)
		} else {
			c.report(ChallengeFailed)
		}
		return nil, &ChallengeError{Err: err}
	}

	if !replayable(req) {
		c.report(ChallengeFailed)
		return nil, &ChallengeError{Err: ErrBodyNotReplayable}
	}

	out := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			c.report(ChallengeFailed)
			return nil, &ChallengeError{Err: err}
		}
		out.Body = body
	}
	out.Header.Set(c.codeHeader, strings.TrimSpace(code))

	resubmitted, err := c.next.RoundTrip(out)
	if err != nil {
		c.report(ChallengeFailed)
		return nil, &ChallengeError{Err: err}
	}
	c.report(ChallengeResolved)
	return resubmitted, nil
}

func (c *ChallengeGate) isChallenge(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	if resp.StatusCode != http.StatusForbidden {
		return false
	}
	return strings.TrimSpace(resp.Header.Get(c.header)) != ""
}

func (c *ChallengeGate) park() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parked {
		return false
	}
	c.parked = true
	return true
}

func (c *ChallengeGate) unpark() {
	c.mu.Lock()
	c.parked = false
	c.mu.Unlock()
}

func (c *ChallengeGate) report(outcome string) {
	if c.onOutcome != nil {
		c.onOutcome(outcome)
	}
}

// challengeMessage extracts the envelope message from a challenge body, if any.
func challengeMessage(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	return strings.TrimSpace(envelope.Message)
}
