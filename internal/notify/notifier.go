// Package notify delivers signal alerts to external channels. The engine
// treats it as one more broadcaster: every stream update passes through,
// and actionable (non-HOLD) signals become alerts.
package notify

import (
	"context"
	"fmt"
	"log"

	"signal-enginev1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Symbol  string     `json:"symbol,omitempty"`
	Action  string     `json:"action,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of delivering them. Useful in dev.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// SignalAlerter adapts a Notifier to the broadcaster port. BUY and SELL
// signals become alerts; HOLD signals and error records pass silently.
// Delivery runs off the session's cycle goroutine so a slow endpoint
// never stalls emission.
type SignalAlerter struct {
	notifier Notifier

	// MinStrength suppresses weak signals. Zero sends everything non-HOLD.
	MinStrength float64
}

func NewSignalAlerter(n Notifier) *SignalAlerter {
	return &SignalAlerter{notifier: n}
}

func (a *SignalAlerter) Emit(ctx context.Context, update model.StreamUpdate) {
	for symbol, rec := range update.Signals {
		if rec.Signal == nil || rec.Signal.Final == model.ActionHold {
			continue
		}
		if rec.Signal.Strength < a.MinStrength {
			continue
		}
		alert := Alert{
			Level:  AlertInfo,
			Title:  fmt.Sprintf("%s %s", rec.Signal.Final, symbol),
			Symbol: symbol,
			Action: string(rec.Signal.Final),
			Message: fmt.Sprintf("%s %s@%s strength=%.2f close=%.5f",
				rec.Signal.Final, symbol, update.Timeframe, rec.Signal.Strength, rec.Signal.Close),
		}
		go func() {
			if err := a.notifier.Send(context.Background(), alert); err != nil {
				log.Printf("[notify] delivery failed: %v", err)
			}
		}()
	}
}
