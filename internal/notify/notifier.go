// Package notify delivers operator notifications about resolutions.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/fd1az/oracle-resolver/internal/logger"
)

// Event types.
const (
	EventResolved        = "resolved"
	EventAlreadyResolved = "already_resolved"
	EventFailed          = "failed"
	EventSkipped         = "skipped"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a notification out to every sender. An empty event filter
// lets every event through.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	log     logger.LoggerInterface
}

// New creates a Notifier.
func New(senders []Sender, events []string, log logger.LoggerInterface) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[e] = true
	}
	return &Notifier{senders: senders, events: allowed, log: log}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends to every sender. One failing sender does not stop the rest.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.log.Warn(ctx, "notification failed", "sender", s.Name(), "event", event, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.log.Debug(ctx, "notification sent", "sender", s.Name(), "event", event)
	}
	return errors.Join(errs...)
}
