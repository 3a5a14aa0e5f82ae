package pricingclient

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// State describes where the coalescer currently is in its request lifecycle.
type State int

const (
	// StateIdle means no request is pending or in flight.
	StateIdle State = iota
	// StateDebouncing means an update arrived and the quiet period is running.
	StateDebouncing
	// StateInFlight means a request has been issued and no response arrived yet.
	StateInFlight
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateInFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

const defaultQuietPeriod = 500 * time.Millisecond

// Quoter issues price quote requests. Implemented by Client.
type Quoter interface {
	CalculatePrice(ctx context.Context, req QuoteRequest) (*QuoteResponse, error)
}

// Coalescer collapses rapid configuration changes into a minimal stream of
// quote requests. Each Update restarts a quiet period; only the latest
// configuration is sent once the period elapses, and at most one request is
// in flight at a time. Responses that no longer match the newest requested
// configuration are discarded so the UI never shows a price for a stale
// selection.
type Coalescer struct {
	quoter      Quoter
	quietPeriod time.Duration
	manual      bool
	onQuote     func(QuoteRequest, *QuoteResponse)
	onError     func(QuoteRequest, error)

	mu          sync.Mutex
	state       State
	timer       *time.Timer
	pending     *QuoteRequest
	pendingKey  string
	inFlightKey string
	lastKey     string
	seq         uint64
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// CoalescerOption customises the coalescer before construction completes.
type CoalescerOption func(*Coalescer)

// WithQuietPeriod overrides the debounce window.
func WithQuietPeriod(d time.Duration) CoalescerOption {
	return func(c *Coalescer) {
		if d > 0 {
			c.quietPeriod = d
		}
	}
}

// WithManualTrigger disables the automatic dispatch after the quiet period.
// Updates are recorded but nothing is sent until Flush is called; used by
// surfaces that populate a form programmatically and price on demand.
func WithManualTrigger() CoalescerOption {
	return func(c *Coalescer) {
		c.manual = true
	}
}

// WithErrorHandler sets the callback invoked when a quote request fails.
// On failure the last successfully applied quote is left in place.
func WithErrorHandler(fn func(QuoteRequest, error)) CoalescerOption {
	return func(c *Coalescer) {
		c.onError = fn
	}
}

// NewCoalescer constructs a coalescer that delivers quotes to onQuote.
func NewCoalescer(quoter Quoter, onQuote func(QuoteRequest, *QuoteResponse), opts ...CoalescerOption) *Coalescer {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coalescer{
		quoter:      quoter,
		quietPeriod: defaultQuietPeriod,
		onQuote:     onQuote,
		onError:     func(QuoteRequest, error) {},
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the current lifecycle state.
func (c *Coalescer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Update records a configuration change. Identical consecutive configurations
// are deduplicated; a changed configuration restarts the quiet period. If a
// request is already in flight the change is queued and dispatched after the
// response arrives.
func (c *Coalescer) Update(req QuoteRequest) {
	key := requestKey(req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	switch c.state {
	case StateIdle:
		if key == c.lastKey {
			return
		}
		c.pending = &req
		c.pendingKey = key
		c.state = StateDebouncing
		c.startTimerLocked()
	case StateDebouncing:
		if key == c.pendingKey {
			return
		}
		c.pending = &req
		c.pendingKey = key
		c.startTimerLocked()
	case StateInFlight:
		// The outstanding request already covers this configuration, or it
		// matches the last applied one; either way nothing new to send.
		if key == c.inFlightKey || key == c.lastKey {
			c.pending = nil
			c.pendingKey = ""
			return
		}
		c.pending = &req
		c.pendingKey = key
	}
}

// Flush dispatches any pending configuration immediately, skipping the
// remainder of the quiet period.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state != StateDebouncing {
		return
	}
	c.stopTimerLocked()
	c.dispatchLocked()
}

// Close stops the coalescer. In-flight responses are discarded and no
// further callbacks fire. Close blocks until the worker goroutine exits.
func (c *Coalescer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.pending = nil
	c.pendingKey = ""
	c.state = StateIdle
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Coalescer) startTimerLocked() {
	c.stopTimerLocked()
	if c.manual {
		return
	}
	c.timer = time.AfterFunc(c.quietPeriod, c.quietPeriodElapsed)
}

func (c *Coalescer) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coalescer) quietPeriodElapsed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state != StateDebouncing || c.pending == nil {
		return
	}
	c.dispatchLocked()
}

// dispatchLocked sends the pending request on a worker goroutine. Callers
// must hold c.mu.
func (c *Coalescer) dispatchLocked() {
	req := *c.pending
	key := c.pendingKey
	c.pending = nil
	c.pendingKey = ""
	c.inFlightKey = key
	c.state = StateInFlight
	c.seq++
	seq := c.seq

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		quote, err := c.quoter.CalculatePrice(c.ctx, req)
		c.complete(seq, req, key, quote, err)
	}()
}

func (c *Coalescer) complete(seq uint64, req QuoteRequest, key string, quote *QuoteResponse, err error) {
	c.mu.Lock()

	if c.closed || seq != c.seq {
		c.mu.Unlock()
		return
	}
	c.inFlightKey = ""

	// A newer configuration arrived while this request was in flight. The
	// response is stale; drop it and debounce the newest configuration.
	if c.pending != nil {
		c.state = StateDebouncing
		c.startTimerLocked()
		c.mu.Unlock()
		return
	}

	c.state = StateIdle
	if err == nil {
		c.lastKey = key
	}
	c.mu.Unlock()

	if err != nil {
		c.onError(req, err)
		return
	}
	if c.onQuote != nil {
		c.onQuote(req, quote)
	}
}

// requestKey produces a stable identity for a configuration so identical
// updates can be deduplicated.
func requestKey(req QuoteRequest) string {
	data, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	return string(data)
}
