// Package notify delivers user-facing events. The default sink writes
// structured log lines; other transports implement the same interface.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Event kinds.
const (
	KindLaunch = "launch"
	KindAlert  = "alert"
	KindTrade  = "trade"
	KindCTO    = "cto"
)

// Event is a single notification.
type Event struct {
	Kind         string
	UserID       string
	TokenAddress string
	Title        string
	Body         string
	Fields       map[string]interface{}
}

// Notifier delivers events. Delivery failures are the implementation's
// problem; callers have already committed the state change the event
// describes.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes events to the structured log.
type LogNotifier struct{}

// NewLogNotifier creates the log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify logs the event and never fails.
func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	entry := log.Info().
		Str("kind", ev.Kind).
		Str("title", ev.Title)
	if ev.UserID != "" {
		entry = entry.Str("user_id", ev.UserID)
	}
	if ev.TokenAddress != "" {
		entry = entry.Str("token", ev.TokenAddress)
	}
	for k, v := range ev.Fields {
		entry = entry.Interface(k, v)
	}
	entry.Msg(ev.Body)
	return nil
}
