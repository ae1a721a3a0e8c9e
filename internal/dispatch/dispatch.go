// Package dispatch fans qualifying posts out to the subscriber list.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nvoronov/chanrelay/internal/format"
	"github.com/nvoronov/chanrelay/internal/models"
	"github.com/nvoronov/chanrelay/internal/store"
)

// Transport delivers rendered directives to a single recipient.
type Transport interface {
	SendMessage(ctx context.Context, recipient, text string) error
	ForwardMessage(ctx context.Context, recipient string, post models.Post) error
}

// SettingsSource yields the live settings at dispatch time, so template and
// mode changes take effect for the very next post.
type SettingsSource interface {
	Snapshot() store.Settings
}

type Dispatcher struct {
	transport Transport
	settings  SettingsSource
}

func New(transport Transport, settings SettingsSource) *Dispatcher {
	return &Dispatcher{transport: transport, settings: settings}
}

// OnPost relays one post to every current subscriber. Directives are rendered
// once; deliveries run concurrently and independently. A failed delivery is
// logged and skipped, it never blocks the remaining recipients and is not
// retried — the next post triggers a fresh attempt.
func (d *Dispatcher) OnPost(ctx context.Context, post models.Post) {
	s := d.settings.Snapshot()
	directives := format.Render(post, s.Mode, s.Template)
	if len(directives) == 0 || len(s.Subscribers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, recipient := range s.Subscribers {
		wg.Add(1)
		go func(recipient string) {
			defer wg.Done()
			d.deliver(ctx, recipient, post, directives)
		}(recipient)
	}
	wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, recipient string, post models.Post, directives []models.Directive) {
	for _, dir := range directives {
		var err error
		switch dir.Kind {
		case models.DirectiveForward:
			err = d.transport.ForwardMessage(ctx, recipient, post)
		default:
			err = d.transport.SendMessage(ctx, recipient, dir.Text)
		}
		if err != nil {
			slog.Warn("delivery failed",
				"recipient", recipient,
				"source", post.SourceTitle,
				"message_id", post.MessageID,
				"err", err)
		}
	}
}
