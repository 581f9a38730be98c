package notify

import (
	"context"
	"errors"

	"github.com/slogate/slogate/internal/alert"
	"github.com/slogate/slogate/internal/storage"
)

// Fanout delivers an event to every notifier, collecting errors. Each
// notifier sees every event, so a failing webhook never blocks the audit
// trail or vice versa.
type Fanout []alert.Notifier

// Notify implements alert.Notifier.
func (f Fanout) Notify(ctx context.Context, ev alert.Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AuditRecorder persists transitions to audit storage as a notifier.
type AuditRecorder struct {
	Store storage.AuditStorage
}

// Notify implements alert.Notifier.
func (a AuditRecorder) Notify(ctx context.Context, ev alert.Event) error {
	return a.Store.StoreAlertTransition(ctx, ev)
}
