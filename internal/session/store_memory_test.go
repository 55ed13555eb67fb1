package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "applygate/pkg/domain"
)

func TestInMemoryStore_InvalidateUser_RemovesAllSessions(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	userID := id.NewUserID()

	first := Session{ID: id.NewSessionID(), UserID: userID, CreatedAt: time.Now()}
	second := Session{ID: id.NewSessionID(), UserID: userID, CreatedAt: time.Now()}
	other := Session{ID: id.NewSessionID(), UserID: id.NewUserID(), CreatedAt: time.Now()}

	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))
	require.NoError(t, store.Save(ctx, other))

	require.NoError(t, store.InvalidateUser(ctx, userID))

	for _, sid := range []id.SessionID{first.ID, second.ID} {
		active, err := store.IsActive(ctx, sid)
		require.NoError(t, err)
		assert.False(t, active)
	}

	active, err := store.IsActive(ctx, other.ID)
	require.NoError(t, err)
	assert.True(t, active, "other user's session must survive")
}

func TestInMemoryStore_Invalidate_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	sess := Session{ID: id.NewSessionID(), UserID: id.NewUserID(), CreatedAt: time.Now()}

	require.NoError(t, store.Save(ctx, sess))
	require.NoError(t, store.Invalidate(ctx, sess.ID))
	require.NoError(t, store.Invalidate(ctx, sess.ID))

	active, err := store.IsActive(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, active)
}
