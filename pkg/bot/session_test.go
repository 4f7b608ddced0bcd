package bot

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jordanlanch/salesbot/pkg/cache"
)

func setupSessions(t *testing.T) (*Sessions, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := cache.NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Redis.Close() })
	return NewSessions(client), mr
}

func TestSessionRoundTrip(t *testing.T) {
	sessions, _ := setupSessions(t)
	ctx := context.Background()

	_, err := sessions.Get(ctx, 10, 20)
	assert.ErrorIs(t, err, ErrNoSession)

	state := &State{Step: StepLoginUser, Login: "ana"}
	require.NoError(t, sessions.Put(ctx, 10, 20, state))

	got, err := sessions.Get(ctx, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, StepLoginUser, got.Step)
	assert.Equal(t, "ana", got.Login)

	// Same user in another chat sees nothing.
	_, err = sessions.Get(ctx, 11, 20)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionClear(t *testing.T) {
	sessions, _ := setupSessions(t)
	ctx := context.Background()

	require.NoError(t, sessions.Put(ctx, 1, 2, &State{Step: StepNoteText}))
	require.NoError(t, sessions.Clear(ctx, 1, 2))

	_, err := sessions.Get(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionCorruptStateIsDropped(t *testing.T) {
	sessions, mr := setupSessions(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("sess:1:2", "{not json"))

	_, err := sessions.Get(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, mr.Exists("sess:1:2"))
}

func TestAuthBinding(t *testing.T) {
	sessions, _ := setupSessions(t)
	ctx := context.Background()

	_, err := sessions.AgentID(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	id := primitive.NewObjectID()
	require.NoError(t, sessions.SetAgent(ctx, 1, 2, id))

	got, err := sessions.AgentID(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestAuthCorruptIdentityIsDropped(t *testing.T) {
	sessions, mr := setupSessions(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("auth:1:2", "not-a-hex-id"))

	_, err := sessions.AgentID(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, mr.Exists("auth:1:2"))
}

func TestLogoutRemovesStateAndIdentity(t *testing.T) {
	sessions, _ := setupSessions(t)
	ctx := context.Background()

	require.NoError(t, sessions.Put(ctx, 1, 2, &State{Step: StepSearchPhone}))
	require.NoError(t, sessions.SetAgent(ctx, 1, 2, primitive.NewObjectID()))

	require.NoError(t, sessions.Logout(ctx, 1, 2))

	_, err := sessions.Get(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = sessions.AgentID(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
