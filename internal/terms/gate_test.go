package terms

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saaskit/internal/authstate"
	"saaskit/internal/notify"
	"saaskit/internal/profilecache"
	"saaskit/internal/profiles"
	"saaskit/internal/supabase"
)

type stubAuth struct {
	state   authstate.State
	reloads int
}

func (s *stubAuth) Snapshot() authstate.State { return s.state }
func (s *stubAuth) ReloadProfile()            { s.reloads++ }

type stubUpdater struct {
	updateFn func(ctx context.Context, id uuid.UUID, patch profiles.Patch) (profiles.Profile, error)
	patches  []profiles.Patch
}

func (s *stubUpdater) Update(ctx context.Context, id uuid.UUID, patch profiles.Patch) (profiles.Profile, error) {
	s.patches = append(s.patches, patch)
	return s.updateFn(ctx, id, patch)
}

func TestEvaluateHiddenWithoutUser(t *testing.T) {
	assert.Equal(t, Hidden, Evaluate(authstate.State{}))
}

func TestGateAcceptHidesGate(t *testing.T) {
	id := uuid.New()
	auth := &stubAuth{state: readyState(t, id, false)}
	updater := &stubUpdater{updateFn: func(_ context.Context, id uuid.UUID, _ profiles.Patch) (profiles.Profile, error) {
		return profiles.Profile{ID: id, HasAcceptedTerms: true}, nil
	}}
	notifier := &notify.Recorder{}
	gate := New(auth, updater, notifier, nil)

	require.Equal(t, Visible, gate.Visibility())
	require.NoError(t, gate.Accept(context.Background()))

	assert.Equal(t, Hidden, gate.Visibility())
	assert.Equal(t, 1, auth.reloads)
	require.Len(t, updater.patches, 1)
	require.NotNil(t, updater.patches[0].HasAcceptedTerms)
	assert.True(t, *updater.patches[0].HasAcceptedTerms)

	sent := notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Merci !", sent[0].Title)
	assert.Equal(t, "Vous pouvez maintenant accéder à l'application.", sent[0].Description)
}

func TestGateAcceptFailureStaysVisible(t *testing.T) {
	id := uuid.New()
	auth := &stubAuth{state: readyState(t, id, false)}
	boom := errors.New("profile not found")
	calls := 0
	updater := &stubUpdater{updateFn: func(_ context.Context, id uuid.UUID, _ profiles.Patch) (profiles.Profile, error) {
		calls++
		if calls == 1 {
			return profiles.Profile{}, boom
		}
		return profiles.Profile{ID: id, HasAcceptedTerms: true}, nil
	}}
	notifier := &notify.Recorder{}
	gate := New(auth, updater, notifier, nil)

	err := gate.Accept(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Visible, gate.Visibility())
	assert.Zero(t, auth.reloads)
	require.Len(t, notifier.Sent(), 1)
	assert.Equal(t, notify.Destructive, notifier.Sent()[0].Variant)

	require.NoError(t, gate.Accept(context.Background()))
	assert.Equal(t, Hidden, gate.Visibility())
	assert.Equal(t, updater.patches[0], updater.patches[1])
}

func TestEvaluateFollowsProfileFlag(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, Visible, Evaluate(readyState(t, id, false)))
	assert.Equal(t, Hidden, Evaluate(readyState(t, id, true)))

	noProfile := readyState(t, id, false)
	noProfile.Profile = nil
	assert.Equal(t, Hidden, Evaluate(noProfile))
}

func readyState(t *testing.T, id uuid.UUID, accepted bool) authstate.State {
	t.Helper()
	user := supabase.User{ID: id, Email: "terms@example.com"}
	return authstate.State{
		User: &user,
		Profile: &profilecache.Result{
			Kind:    profilecache.Persisted,
			Profile: profiles.Profile{ID: id, Email: user.Email, Role: profiles.RoleUser, HasAcceptedTerms: accepted},
		},
	}
}
