// Package admin implements the administrator data views: the user listing,
// role and subscription toggles, account deletion and signup metrics.
package admin

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"saaskit/internal/authstate"
	"saaskit/internal/exporter"
	"saaskit/internal/notify"
	"saaskit/internal/profiles"
)

// DeleteConfirmation must be typed verbatim to delete an account.
const DeleteConfirmation = "DELETE"

var (
	// ErrAccessDenied is returned to callers without the admin role.
	ErrAccessDenied = errors.New("admin: access denied")
	// ErrConfirmationMismatch is returned when the delete confirmation is wrong.
	ErrConfirmationMismatch = errors.New("admin: confirmation does not match")
)

// Auth exposes the current authentication state.
type Auth interface {
	Snapshot() authstate.State
}

// Store reads and mutates profiles through the cache.
type Store interface {
	List(ctx context.Context) ([]profiles.Profile, error)
	Update(ctx context.Context, id uuid.UUID, patch profiles.Patch) (profiles.Profile, error)
	Delete(ctx context.Context, id uuid.UUID) error
	InvalidateList(ctx context.Context)
}

// Views backs the admin pages.
type Views struct {
	auth     Auth
	store    Store
	notifier notify.Notifier
	exporter *exporter.CSVExporter
	logger   *zap.Logger
}

// New builds the admin views.
func New(auth Auth, store Store, notifier notify.Notifier, logger *zap.Logger) *Views {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Views{auth: auth, store: store, notifier: notifier, exporter: exporter.NewCSVExporter(), logger: logger}
}

func (v *Views) authorize() error {
	if !v.auth.Snapshot().IsAdmin() {
		return ErrAccessDenied
	}
	return nil
}

// ListProfiles returns every profile, newest first.
func (v *Views) ListProfiles(ctx context.Context) ([]profiles.Profile, error) {
	if err := v.authorize(); err != nil {
		return nil, err
	}
	return v.store.List(ctx)
}

// Filter lists profiles matching opts.
func (v *Views) Filter(ctx context.Context, opts profiles.FilterOptions) ([]profiles.Profile, error) {
	list, err := v.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	return profiles.Filter(list, opts), nil
}

// ToggleRole flips p between user and admin.
func (v *Views) ToggleRole(ctx context.Context, p profiles.Profile) (profiles.Profile, error) {
	role := profiles.RoleAdmin
	if p.Role == profiles.RoleAdmin {
		role = profiles.RoleUser
	}
	return v.mutate(ctx, p.ID, profiles.Patch{Role: &role}, "Rôle mis à jour", p.DisplayName()+" est maintenant "+string(role)+".")
}

// ToggleSubscriber flips the subscription flag of p.
func (v *Views) ToggleSubscriber(ctx context.Context, p profiles.Profile) (profiles.Profile, error) {
	subscribed := !p.IsSubscriber
	description := p.DisplayName() + " n'est plus abonné."
	if subscribed {
		description = p.DisplayName() + " est maintenant abonné."
	}
	return v.mutate(ctx, p.ID, profiles.Patch{IsSubscriber: &subscribed}, "Abonnement mis à jour", description)
}

// DeleteUser removes the profile of id once confirmation equals
// DeleteConfirmation. Anything else is a no-op.
func (v *Views) DeleteUser(ctx context.Context, id uuid.UUID, confirmation string) error {
	if err := v.authorize(); err != nil {
		return err
	}
	if confirmation != DeleteConfirmation {
		return ErrConfirmationMismatch
	}

	if err := v.store.Delete(ctx, id); err != nil {
		v.fail("delete user", id, err)
		return err
	}
	v.store.InvalidateList(ctx)
	v.notifier.Notify(notify.Notification{Variant: notify.Default, Title: "Utilisateur supprimé", Description: "Le compte a été supprimé."})
	return nil
}

// Metrics computes signup windows, the daily growth series and totals.
func (v *Views) Metrics(ctx context.Context, now time.Time) (profiles.Metrics, error) {
	list, err := v.ListProfiles(ctx)
	if err != nil {
		return profiles.Metrics{}, err
	}
	return profiles.ComputeMetrics(list, now), nil
}

// ExportCSV writes the listing to w.
func (v *Views) ExportCSV(ctx context.Context, w io.Writer) error {
	list, err := v.ListProfiles(ctx)
	if err != nil {
		return err
	}
	return v.exporter.Export(w, list)
}

func (v *Views) mutate(ctx context.Context, id uuid.UUID, patch profiles.Patch, title, description string) (profiles.Profile, error) {
	if err := v.authorize(); err != nil {
		return profiles.Profile{}, err
	}

	updated, err := v.store.Update(ctx, id, patch)
	if err != nil {
		v.fail("update user", id, err)
		return profiles.Profile{}, err
	}
	v.store.InvalidateList(ctx)
	v.notifier.Notify(notify.Notification{Variant: notify.Default, Title: title, Description: description})
	return updated, nil
}

func (v *Views) fail(action string, id uuid.UUID, err error) {
	v.logger.Warn("admin "+action+" failed", zap.String("user_id", id.String()), zap.Error(err))
	v.notifier.Notify(notify.Notification{Variant: notify.Destructive, Title: "Erreur", Description: err.Error()})
}
