package monitor

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (c *captureNotifier) Notify(alert Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alert)
	return c.err
}

func (c *captureNotifier) delivered() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

func TestAlertManagerRaisesAndRetains(t *testing.T) {
	notifier := &captureNotifier{}
	mgr := NewAlertManager(notifier)

	alert := mgr.Raise(AlertWarning, "quarantine", "BTCUSDT", "too many errors")
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, AlertWarning, alert.Level)
	assert.False(t, alert.Time.IsZero())

	require.Eventually(t, func() bool {
		return len(notifier.delivered()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "quarantine", notifier.delivered()[0].Category)

	recent := mgr.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, alert.ID, recent[0].ID)
}

func TestAlertManagerDeliveryBestEffort(t *testing.T) {
	mgr := NewAlertManager(&captureNotifier{err: errors.New("webhook down")})

	// A failing notifier must not prevent recording
	mgr.Raise(AlertCritical, "bootstrap", "", "connectivity lost")
	assert.Len(t, mgr.Recent(0), 1)
}

type stalledNotifier struct {
	release chan struct{}
	done    chan struct{}
}

func (s *stalledNotifier) Notify(Alert) error {
	<-s.release
	close(s.done)
	return nil
}

func TestAlertManagerRaiseDoesNotWaitOnDelivery(t *testing.T) {
	notifier := &stalledNotifier{
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
	mgr := NewAlertManager(notifier)

	// The notifier is blocked, but Raise must record and return anyway
	start := time.Now()
	mgr.Raise(AlertWarning, "quarantine", "BTCUSDT", "too many errors")
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Len(t, mgr.Recent(0), 1)

	// Delivery still completes once the channel unblocks
	close(notifier.release)
	select {
	case <-notifier.done:
	case <-time.After(time.Second):
		t.Fatal("delivery never completed")
	}
}

func TestAlertManagerBoundedRetention(t *testing.T) {
	mgr := NewAlertManager()

	for i := 0; i < maxRetainedAlerts+50; i++ {
		mgr.Raise(AlertInfo, "test", "", fmt.Sprintf("alert %d", i))
	}

	recent := mgr.Recent(0)
	assert.Len(t, recent, maxRetainedAlerts)
	// Oldest were dropped; the newest is retained
	assert.Equal(t, fmt.Sprintf("alert %d", maxRetainedAlerts+49), recent[len(recent)-1].Message)
}

func TestAlertManagerRecentLimit(t *testing.T) {
	mgr := NewAlertManager()
	for i := 0; i < 10; i++ {
		mgr.Raise(AlertInfo, "test", "", fmt.Sprintf("alert %d", i))
	}

	recent := mgr.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "alert 9", recent[2].Message)
}
