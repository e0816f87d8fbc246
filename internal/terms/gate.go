// Package terms implements the one-time terms acceptance gate.
package terms

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"saaskit/internal/authstate"
	"saaskit/internal/notify"
	"saaskit/internal/profiles"
)

// Visibility of the gate.
type Visibility int

const (
	Hidden Visibility = iota
	Visible
)

func (v Visibility) String() string {
	if v == Visible {
		return "visible"
	}
	return "hidden"
}

// Evaluate shows the gate only once the profile has loaded and terms are
// still unaccepted. Unauthenticated and loading states never show it.
func Evaluate(state authstate.State) Visibility {
	if state.IsLoading() || !state.HasUser() {
		return Hidden
	}
	p := state.CurrentProfile()
	if p == nil || p.HasAcceptedTerms {
		return Hidden
	}
	return Visible
}

// Auth is the part of the auth context the gate needs.
type Auth interface {
	Snapshot() authstate.State
	ReloadProfile()
}

// Updater persists profile changes and invalidates cached copies.
type Updater interface {
	Update(ctx context.Context, id uuid.UUID, patch profiles.Patch) (profiles.Profile, error)
}

// Gate tracks acceptance for the current user until the reloaded profile
// catches up.
type Gate struct {
	auth     Auth
	updater  Updater
	notifier notify.Notifier
	logger   *zap.Logger

	mu       sync.Mutex
	accepted map[uuid.UUID]bool
}

// New builds a Gate.
func New(auth Auth, updater Updater, notifier notify.Notifier, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{auth: auth, updater: updater, notifier: notifier, logger: logger, accepted: make(map[uuid.UUID]bool)}
}

// Visibility evaluates the current auth state.
func (g *Gate) Visibility() Visibility {
	state := g.auth.Snapshot()
	if Evaluate(state) == Hidden {
		return Hidden
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.accepted[state.User.ID] {
		return Hidden
	}
	return Visible
}

// Accept records acceptance for the signed-in user. Retrying after a
// failure re-issues the same update.
func (g *Gate) Accept(ctx context.Context) error {
	state := g.auth.Snapshot()
	if !state.HasUser() {
		return nil
	}
	id := state.User.ID

	accepted := true
	if _, err := g.updater.Update(ctx, id, profiles.Patch{HasAcceptedTerms: &accepted}); err != nil {
		g.logger.Warn("terms acceptance failed", zap.String("user_id", id.String()), zap.Error(err))
		g.notifier.Notify(notify.Notification{
			Variant:     notify.Destructive,
			Title:       "Erreur",
			Description: "Impossible de mettre à jour vos préférences.",
		})
		return err
	}

	g.mu.Lock()
	g.accepted[id] = true
	g.mu.Unlock()

	g.auth.ReloadProfile()
	g.notifier.Notify(notify.Notification{
		Variant:     notify.Default,
		Title:       "Merci !",
		Description: "Vous pouvez maintenant accéder à l'application.",
	})
	return nil
}
