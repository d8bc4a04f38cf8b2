package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"leadpilot-backend/internal/models"
)

func verifyNoLeaks(t *testing.T) {
	goleak.VerifyNone(t,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

type fakeSender struct {
	name     string
	accept   bool
	failures int // attempts that fail before succeeding; -1 fails forever
	err      error
	block    chan struct{}

	mu       sync.Mutex
	attempts int
	contents []Content
}

func (f *fakeSender) Name() string                           { return f.name }
func (f *fakeSender) Accepts(alert models.HotLeadAlert) bool { return f.accept }

func (f *fakeSender) Send(ctx context.Context, _ models.HotLeadAlert, content Content) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	f.contents = append(f.contents, content)
	if f.failures < 0 || f.attempts <= f.failures {
		if f.err != nil {
			return f.err
		}
		return errors.New("temporary failure")
	}
	return nil
}

func (f *fakeSender) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func testAlert() models.HotLeadAlert {
	return models.HotLeadAlert{
		TenantID:   "tenant-1",
		TenantName: "Acme",
		Recipients: []string{"sales@acme.test"},
		Lead: &models.Lead{
			Fields: models.LeadFields{Name: "Ana", Email: "ana@example.com"},
			Score:  80,
			Grade:  models.GradeHot,
		},
		Snippet: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	}
}

var fastPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func TestDispatcherRetriesUntilSuccess(t *testing.T) {
	defer verifyNoLeaks(t)

	s := &fakeSender{name: "email", accept: true, failures: 2}
	d := NewDispatcher(fastPolicy, s)
	d.NotifyHotLead(testAlert())
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 3, s.Attempts())
	assert.Equal(t, "🔥 Hot Lead Alert: Ana (Score: 80/100)", s.contents[0].Subject)
}

func TestDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	defer verifyNoLeaks(t)

	failing := &fakeSender{name: "email", accept: true, failures: -1}
	healthy := &fakeSender{name: "slack", accept: true}
	d := NewDispatcher(fastPolicy, failing, healthy)
	d.NotifyHotLead(testAlert())
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 3, failing.Attempts())
	assert.Equal(t, 1, healthy.Attempts(), "one channel failing must not stop the others")
}

func TestDispatcherPermanentErrorIsNotRetried(t *testing.T) {
	defer verifyNoLeaks(t)

	s := &fakeSender{name: "slack", accept: true, failures: -1, err: backoff.Permanent(ErrNoSlackToken)}
	d := NewDispatcher(fastPolicy, s)
	d.NotifyHotLead(testAlert())
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 1, s.Attempts())
}

func TestDispatcherSkipsChannelsWithoutDestination(t *testing.T) {
	defer verifyNoLeaks(t)

	s := &fakeSender{name: "slack", accept: false}
	d := NewDispatcher(fastPolicy, s)
	d.NotifyHotLead(testAlert())
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 0, s.Attempts())
}

func TestNotifyHotLeadDoesNotBlock(t *testing.T) {
	defer verifyNoLeaks(t)

	s := &fakeSender{name: "email", accept: true, block: make(chan struct{})}
	d := NewDispatcher(fastPolicy, s)

	returned := make(chan struct{})
	go func() {
		d.NotifyHotLead(testAlert())
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("NotifyHotLead blocked on delivery")
	}

	close(s.block)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, s.Attempts())
}

func TestCloseAbandonsPendingRetries(t *testing.T) {
	defer verifyNoLeaks(t)

	s := &fakeSender{name: "email", accept: true, failures: -1}
	d := NewDispatcher(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour}, s)
	d.NotifyHotLead(testAlert())

	require.Eventually(t, func() bool { return s.Attempts() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := d.Close(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, s.Attempts())
}

func TestNotifyAfterCloseIsDropped(t *testing.T) {
	defer verifyNoLeaks(t)

	s := &fakeSender{name: "email", accept: true}
	d := NewDispatcher(fastPolicy, s)
	require.NoError(t, d.Close(context.Background()))

	d.NotifyHotLead(testAlert())
	assert.Equal(t, 0, s.Attempts())
}

func TestRetryPolicyDelaysDouble(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond}
	b := p.backOff(context.Background())

	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 400*time.Millisecond, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}
