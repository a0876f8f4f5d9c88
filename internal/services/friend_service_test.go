package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/catalog"
	"github.com/nexar-gg/nexar-server/internal/models"
)

func TestFriendRequestLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	req, err := env.friends.SendFriendRequest(ctx, alice.ID, bob.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusPending, req.Status)

	pending, err := env.friends.GetPendingRequests(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, alice.ID, pending[0].SenderID)

	updated, err := env.friends.RespondToRequest(ctx, bob.ID, req.ID.Hex(), true)
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusAccepted, updated.Status)

	// Both sides see the friendship.
	aliceFriends, err := env.friends.GetFriends(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceFriends, 1)
	assert.Equal(t, bob.ID, aliceFriends[0].ID)

	bobFriends, err := env.friends.GetFriends(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobFriends, 1)
	assert.Equal(t, alice.ID, bobFriends[0].ID)

	ok, err := env.friends.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSendFriendRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	_, err := env.friends.SendFriendRequest(ctx, alice.ID, alice.ID.Hex())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = env.friends.SendFriendRequest(ctx, alice.ID, "not-a-hex-id")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = env.friends.SendFriendRequest(ctx, alice.ID, "64b0c1d2e3f4a5b6c7d8e9f0")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOneEdgePerPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	req, err := env.friends.SendFriendRequest(ctx, alice.ID, bob.ID.Hex())
	require.NoError(t, err)

	// No second request in either direction while one is pending.
	_, err = env.friends.SendFriendRequest(ctx, alice.ID, bob.ID.Hex())
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	_, err = env.friends.SendFriendRequest(ctx, bob.ID, alice.ID.Hex())
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = env.friends.RespondToRequest(ctx, bob.ID, req.ID.Hex(), true)
	require.NoError(t, err)

	_, err = env.friends.SendFriendRequest(ctx, alice.ID, bob.ID.Hex())
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestRespondPermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")

	req, err := env.friends.SendFriendRequest(ctx, alice.ID, bob.ID.Hex())
	require.NoError(t, err)

	// Neither the sender nor a bystander may resolve it.
	_, err = env.friends.RespondToRequest(ctx, alice.ID, req.ID.Hex(), true)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	_, err = env.friends.RespondToRequest(ctx, carol.ID, req.ID.Hex(), true)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = env.friends.RespondToRequest(ctx, bob.ID, req.ID.Hex(), false)
	require.NoError(t, err)

	// Resolved means resolved.
	_, err = env.friends.RespondToRequest(ctx, bob.ID, req.ID.Hex(), true)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// The rejected edge still blocks a new request.
	_, err = env.friends.SendFriendRequest(ctx, alice.ID, bob.ID.Hex())
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestUnfriendReopensThePair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.makeFriends(t, alice, bob)

	require.NoError(t, env.friends.Unfriend(ctx, alice.ID, bob.ID.Hex()))

	ok, err := env.friends.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	err = env.friends.Unfriend(ctx, alice.ID, bob.ID.Hex())
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// The deleted edge frees the pair for a fresh request.
	_, err = env.friends.SendFriendRequest(ctx, bob.ID, alice.ID.Hex())
	require.NoError(t, err)
}

func TestAcceptUnlocksFirstFriendForBoth(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.makeFriends(t, alice, bob)

	assert.True(t, env.hasUnlock(t, alice, catalog.AchFirstFriend))
	assert.True(t, env.hasUnlock(t, bob, catalog.AchFirstFriend))
}

func TestSocialButterflyAtFiveFriends(t *testing.T) {
	env := newTestEnv(t)
	hub := env.register(t, "hub")

	for i := 0; i < 5; i++ {
		other := env.register(t, fmt.Sprintf("spoke%d", i))
		env.makeFriends(t, hub, other)

		if i < 4 {
			assert.False(t, env.hasUnlock(t, hub, catalog.AchSocialButterfly),
				"butterfly must wait for the fifth friend")
		}
		assert.False(t, env.hasUnlock(t, other, catalog.AchSocialButterfly))
	}

	assert.True(t, env.hasUnlock(t, hub, catalog.AchSocialButterfly))
}

func TestAcceptNotifiesSender(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.makeFriends(t, alice, bob)

	notifs, err := env.notifications.GetUserNotifications(ctx, alice.ID, false)
	require.NoError(t, err)

	found := false
	for _, n := range notifs {
		if n.Type == models.NotifFriendAccepted {
			found = true
		}
	}
	assert.True(t, found, "sender should hear about the acceptance")
}
