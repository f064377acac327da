package ws

import (
	"context"
	"fmt"

	"github.com/moahnaf11/Messaging-App-Backend/pkg/event"
)

/*
Connect runs the presence lifecycle for a freshly authenticated connection:
register it as the user's routing target, rejoin a room per persisted group
membership, flip the stored online flag and tell everyone else.

It must complete before the connection's read pump starts, so every group
event that arrives after the handshake finds the rooms already joined.
*/
func (r *Router) Connect(ctx context.Context, c *client) error {
	r.registry.Register(c.userID, c)

	groupIDs, err := r.store.UserGroupIDs(ctx, c.userID)
	if err != nil {
		return fmt.Errorf("rejoining rooms: %w", err)
	}
	for _, groupID := range groupIDs {
		r.rooms.Join(groupID, c)
	}

	u, err := r.store.SetOnline(ctx, c.userID, true)
	if err != nil {
		return fmt.Errorf("persisting online status: %w", err)
	}
	if u == nil {
		// Account vanished between token issuance and connect; the
		// connection still works but there is no presence to announce.
		r.log.Warn("connect for deleted account", "user_id", c.userID)
		return nil
	}

	r.emitAll(c, event.PresenceChanged, event.Presence{UserID: c.userID, Online: true})
	r.log.Info("user connected", "user_id", c.userID, "rooms", len(groupIDs))
	return nil
}

/*
Disconnect reverses Connect when a connection closes.  Room membership dies
with the connection unconditionally, but the online flag and the presence
broadcast belong to the registry entry: a connection that was superseded by a
newer login for the same user leaves silently, so the newer connection's
presence is untouched.
*/
func (r *Router) Disconnect(ctx context.Context, c *client) {
	r.rooms.Drop(c)

	if !r.registry.Unregister(c) {
		r.log.Debug("disconnect of superseded or unknown handle", "user_id", c.userID)
		return
	}

	if _, err := r.store.SetOnline(ctx, c.userID, false); err != nil {
		// Presence must still be broadcast: the connection is gone no
		// matter what the store says.
		r.log.Error("persisting offline status failed", "user_id", c.userID, "error", err)
	}

	r.emitAll(c, event.PresenceChanged, event.Presence{UserID: c.userID, Online: false})
	r.log.Info("user disconnected", "user_id", c.userID)
}
