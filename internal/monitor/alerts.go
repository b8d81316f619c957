package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"binance-signal-monitor/internal/logging"
)

// AlertLevel grades alert severity
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is a categorical system event
type Alert struct {
	ID       string     `json:"id"`
	Level    AlertLevel `json:"level"`
	Category string     `json:"category"`
	Symbol   string     `json:"symbol,omitempty"`
	Message  string     `json:"message"`
	Time     time.Time  `json:"time"`
}

// Notifier delivers alerts to an external channel. Delivery is
// asynchronous and best-effort; errors are logged and dropped, and a
// slow channel never holds up the caller.
type Notifier interface {
	Notify(alert Alert) error
}

const maxRetainedAlerts = 200

// AlertManager records alerts in a bounded in-memory ring and forwards
// them to any registered notifiers
type AlertManager struct {
	mu        sync.Mutex
	alerts    []Alert
	notifiers []Notifier
	log       *logging.Logger
}

// NewAlertManager creates an empty alert manager
func NewAlertManager(notifiers ...Notifier) *AlertManager {
	return &AlertManager{
		notifiers: notifiers,
		log:       logging.WithComponent("alerts"),
	}
}

// Raise records an alert and forwards it to all notifiers. The record
// is synchronous; delivery happens off the caller's goroutine so the
// scheduler never waits on a notification channel.
func (a *AlertManager) Raise(level AlertLevel, category, symbol, message string) Alert {
	alert := Alert{
		ID:       uuid.NewString(),
		Level:    level,
		Category: category,
		Symbol:   symbol,
		Message:  message,
		Time:     time.Now().UTC(),
	}

	a.mu.Lock()
	a.alerts = append(a.alerts, alert)
	if len(a.alerts) > maxRetainedAlerts {
		a.alerts = a.alerts[len(a.alerts)-maxRetainedAlerts:]
	}
	notifiers := a.notifiers
	a.mu.Unlock()

	a.log.Info("alert raised", "level", level, "category", category, "symbol", symbol, "message", message)

	for _, n := range notifiers {
		go func(n Notifier) {
			if err := n.Notify(alert); err != nil {
				a.log.Warn("alert delivery failed", "category", category, "error", err)
			}
		}(n)
	}
	return alert
}

// Recent returns the most recent alerts, newest last; limit <= 0
// returns all retained alerts
func (a *AlertManager) Recent(limit int) []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.alerts)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Alert, n)
	copy(out, a.alerts[len(a.alerts)-n:])
	return out
}
