package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/moahnaf11/Messaging-App-Backend/pkg/event"
)

func TestConnect_Registers_Rejoins_Rooms_And_Announces_Presence(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	router := newTestRouter(st)
	observer := newTestClient(uuid.NewString())
	router.registry.Register(observer.userID, observer)

	c := newTestClient(uuid.NewString())
	st.userGroups[c.userID] = []string{"g1", "g2"}

	req.NoError(router.Connect(context.Background(), c))

	// The connection is the user's routing target and sits in its rooms.
	got, ok := router.registry.Lookup(c.userID)
	req.True(ok)
	req.Same(c, got)
	req.True(router.rooms.Contains("g1", c))
	req.True(router.rooms.Contains("g2", c))

	// The online flag was persisted exactly once.
	req.Equal([]bool{true}, st.online[c.userID])

	// Everyone but the new connection heard about it.
	frames := recvAll(t, observer)
	req.Equal([]event.Name{event.PresenceChanged}, names(frames))
	var p event.Presence
	req.NoError(json.Unmarshal(frames[0].Payload, &p))
	req.Equal(c.userID, p.UserID)
	req.True(p.Online)
	req.Empty(recvAll(t, c))
}

func TestConnect_Deleted_Account_Skips_The_Presence_Broadcast(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	router := newTestRouter(st)
	observer := newTestClient(uuid.NewString())
	router.registry.Register(observer.userID, observer)

	c := newTestClient(uuid.NewString())
	st.missing[c.userID] = true

	req.NoError(router.Connect(context.Background(), c))

	// The connection itself still works.
	_, ok := router.registry.Lookup(c.userID)
	req.True(ok)
	req.Empty(recvAll(t, observer))
}

func TestConnect_Reconnect_Starts_With_An_Empty_Send_Queue(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	router := newTestRouter(st)
	userID := uuid.NewString()
	sender := newTestClient(uuid.NewString())
	router.registry.Register(sender.userID, sender)

	// Events routed while the user was offline are dropped, not queued.
	dispatch(router, sender, event.DirectSend, event.DirectMessage{
		ReceiverID: userID,
		FriendID:   uuid.NewString(),
		Message:    event.Message{ID: uuid.NewString(), SenderID: sender.userID, Content: "missed"},
	})

	c := newTestClient(userID)
	req.NoError(router.Connect(context.Background(), c))

	req.Empty(recvAll(t, c))
	// The durable side stays intact for the HTTP layer to serve.
	req.Len(st.notifs, 1)
}

func TestDisconnect_Registered_Handle_Persists_And_Broadcasts_Once(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	router := newTestRouter(st)
	observer := newTestClient(uuid.NewString())
	router.registry.Register(observer.userID, observer)

	c := newTestClient(uuid.NewString())
	router.registry.Register(c.userID, c)
	router.rooms.Join("g1", c)

	router.Disconnect(context.Background(), c)

	_, ok := router.registry.Lookup(c.userID)
	req.False(ok)
	req.False(router.rooms.Contains("g1", c))
	req.Equal([]bool{false}, st.online[c.userID])

	frames := recvAll(t, observer)
	req.Equal([]event.Name{event.PresenceChanged}, names(frames))
	var p event.Presence
	req.NoError(json.Unmarshal(frames[0].Payload, &p))
	req.Equal(c.userID, p.UserID)
	req.False(p.Online)
}

func TestDisconnect_Superseded_Handle_Leaves_Silently(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	router := newTestRouter(st)
	observer := newTestClient(uuid.NewString())
	router.registry.Register(observer.userID, observer)

	userID := uuid.NewString()
	old := newTestClient(userID)
	router.registry.Register(userID, old)
	router.rooms.Join("g1", old)
	fresh := newTestClient(userID)
	router.registry.Register(userID, fresh)

	router.Disconnect(context.Background(), old)

	// The newer login keeps its mapping and nobody was told it went away.
	got, ok := router.registry.Lookup(userID)
	req.True(ok)
	req.Same(fresh, got)
	req.Empty(st.online[userID])
	req.Empty(recvAll(t, observer))
	// But the stale connection's room membership is gone regardless.
	req.False(router.rooms.Contains("g1", old))
}

func TestDisconnect_Broadcasts_Even_When_The_Store_Fails(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	router := newTestRouter(st)
	observer := newTestClient(uuid.NewString())
	router.registry.Register(observer.userID, observer)

	c := newTestClient(uuid.NewString())
	router.registry.Register(c.userID, c)
	st.err = errors.New("store unavailable")

	router.Disconnect(context.Background(), c)

	req.Equal([]event.Name{event.PresenceChanged}, names(recvAll(t, observer)))
}
