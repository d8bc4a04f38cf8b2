// Package notify delivers hot lead alerts in the background over email and
// Slack, retrying each channel with exponential backoff.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"leadpilot-backend/internal/metrics"
	"leadpilot-backend/internal/models"
)

// ErrDispatcherClosed is logged when an alert arrives after Close.
var ErrDispatcherClosed = errors.New("notification dispatcher closed")

// RetryPolicy bounds delivery attempts per channel. The delay before retry n
// (1-based) is BaseDelay * 2^(n-1).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy is three attempts starting at one second.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.BaseDelay << uint(p.MaxAttempts)
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
}

// Dispatcher fans hot lead alerts out to its senders without blocking the caller.
type Dispatcher struct {
	senders []Sender
	policy  RetryPolicy

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. A zero policy field takes its default.
func NewDispatcher(policy RetryPolicy, senders ...Sender) *Dispatcher {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		senders: senders,
		policy:  policy,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// NotifyHotLead queues the alert for background delivery and returns immediately.
func (d *Dispatcher) NotifyHotLead(alert models.HotLeadAlert) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Error().Err(ErrDispatcherClosed).Str("tenant_id", alert.TenantID).Msg("[Dispatcher] NotifyHotLead: alert dropped")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.deliver(alert)
	}()
}

func (d *Dispatcher) deliver(alert models.HotLeadAlert) {
	content, err := Render(alert)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", alert.TenantID).Msg("[Dispatcher] deliver: failed to render alert")
		return
	}

	for _, s := range d.senders {
		if !s.Accepts(alert) {
			continue
		}
		err := d.sendWithRetry(s, alert, content)
		metrics.RecordNotification(s.Name(), err)
		if err != nil {
			log.Error().Err(err).
				Str("channel", s.Name()).
				Str("tenant_id", alert.TenantID).
				Int("max_attempts", d.policy.MaxAttempts).
				Msg("[Dispatcher] deliver: giving up on hot lead notification")
			continue
		}
		log.Info().Str("channel", s.Name()).Str("tenant_id", alert.TenantID).Msg("[Dispatcher] deliver: hot lead notification sent")
	}
}

func (d *Dispatcher) sendWithRetry(s Sender, alert models.HotLeadAlert, content Content) error {
	attempt := 0
	op := func() error {
		attempt++
		return s.Send(d.ctx, alert, content)
	}
	onRetry := func(err error, wait time.Duration) {
		log.Warn().Err(err).
			Str("channel", s.Name()).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("[Dispatcher] sendWithRetry: attempt failed")
	}
	return backoff.RetryNotify(op, d.policy.backOff(d.ctx), onRetry)
}

// Close stops accepting alerts and waits for in-flight deliveries. When ctx
// expires first, pending retries are abandoned and ctx.Err() is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
