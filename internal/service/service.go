// Package service implements the domain actions behind the HTTP API.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"unicode/utf8"

	"cookiegram/internal/events"
	"cookiegram/internal/featureflags"
	"cookiegram/internal/identity"
	"cookiegram/internal/middleware"
	"cookiegram/internal/models"
	"cookiegram/internal/notifications"
)

// Input limits, in characters.
const (
	maxBioLen         = 500
	maxDescriptionLen = 2200
	maxRecipeLen      = 20000
	maxCommentLen     = 2000
	maxNameLen        = 64
)

// IdentityResolver resolves and updates identity-provider profiles.
type IdentityResolver interface {
	Lookup(ctx context.Context, externalID string) (*identity.User, error)
	LookupMany(ctx context.Context, externalIDs []string) identity.BatchResult
	UpdateName(ctx context.Context, externalID, firstName, lastName string) (*identity.User, error)
	UpdateProfileImage(ctx context.Context, externalID, filename string, image io.Reader) (*identity.User, error)
}

// Notifier pushes live notifications.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uint, msg notifications.Message) error
	NotifyAll(ctx context.Context, msg notifications.Message) error
}

// Dispatcher fans a domain event out to the event log and, when the
// realtime_notifications flag is on for the recipient, to live sockets.
// A nil Dispatcher drops everything. Failures are logged, never returned.
type Dispatcher struct {
	notifier  Notifier
	publisher events.Publisher
	flags     *featureflags.Manager
}

func NewDispatcher(n Notifier, p events.Publisher, flags *featureflags.Manager) *Dispatcher {
	return &Dispatcher{notifier: n, publisher: p, flags: flags}
}

// Emit delivers ev. RecipientID 0 means every connected user.
func (d *Dispatcher) Emit(ctx context.Context, ev events.Event) {
	if d == nil {
		return
	}

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, ev); err != nil {
			middleware.Logger.WarnContext(ctx, "domain event publish failed",
				slog.String("event_type", ev.Type), slog.String("error", err.Error()))
		}
	}

	if d.notifier == nil || !d.flags.Enabled(featureflags.RealtimeNotifications, ev.RecipientID) {
		return
	}
	msg := notifications.Message{Type: ev.Type, Payload: ev.Payload}
	var err error
	if ev.RecipientID == 0 {
		err = d.notifier.NotifyAll(ctx, msg)
	} else {
		err = d.notifier.NotifyUser(ctx, ev.RecipientID, msg)
	}
	if err != nil {
		middleware.Logger.WarnContext(ctx, "notification publish failed",
			slog.String("event_type", ev.Type), slog.String("error", err.Error()))
	}
}

// identityError maps a provider failure for externalID to an AppError.
func identityError(externalID string, err error) error {
	if errors.Is(err, identity.ErrNotFound) {
		return models.NewNotFoundError("User", externalID)
	}
	return models.NewUpstreamError("identity provider", err)
}

func tooLong(s string, max int) bool {
	return utf8.RuneCountInString(s) > max
}
