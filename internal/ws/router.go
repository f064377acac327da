package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/moahnaf11/Messaging-App-Backend/internal/store"
	"github.com/moahnaf11/Messaging-App-Backend/pkg/event"
)

/*
Bridge receives a copy of every routed emission so out-of-process consumers
(push workers, sibling instances) can observe the fan-out.  Publishing is
best-effort and must never block or fail routing.
*/
type Bridge interface {
	Publish(routingKey string, raw []byte)
}

// NopBridge drops everything.  Used when no broker is configured and in
// tests.
type NopBridge struct{}

func (NopBridge) Publish(string, []byte) {}

/*
Router fans inbound events out to the correct connections.  Every transition
is one-shot: event in, zero or more emissions out.  An offline recipient is a
normal branch, not an error — the HTTP layer has already durably stored the
change, so this layer never queues or retries.
*/
type Router struct {
	registry *Registry
	rooms    *Rooms
	store    store.Store
	bridge   Bridge
	log      *slog.Logger
	validate *validator.Validate
}

func NewRouter(st store.Store, bridge Bridge, log *slog.Logger) *Router {
	if bridge == nil {
		bridge = NopBridge{}
	}
	return &Router{
		registry: NewRegistry(),
		rooms:    NewRooms(),
		store:    st,
		bridge:   bridge,
		log:      log,
		validate: validator.New(),
	}
}

// Registry exposes the presence index, e.g. for health endpoints.
func (r *Router) Registry() *Registry { return r.registry }

/*
Dispatch is the single entry point for inbound events.  It is the error
boundary: a failing handler is logged and answered with an error event to the
originating connection instead of tearing anything down.
*/
func (r *Router) Dispatch(ctx context.Context, c *client, e event.ClientEvent) {
	if err := r.handle(ctx, c, e); err != nil {
		r.log.Error("event handling failed",
			"event", e.Name, "user_id", c.userID, "error", err)
		c.trySend(event.Encode(event.Error, event.Problem{
			Event:   e.Name,
			Message: err.Error(),
		}))
	}
}

func (r *Router) handle(ctx context.Context, c *client, e event.ClientEvent) error {
	switch e.Name {
	case event.DirectSend:
		p, err := decode[event.DirectMessage](r, e.Payload)
		if err != nil {
			return err
		}
		return r.directSend(ctx, c, p)

	case event.DirectUpdate:
		p, err := decode[event.DirectMessageUpdate](r, e.Payload)
		if err != nil {
			return err
		}
		r.emitUser(p.ReceiverID, event.DirectUpdated, p)
		return nil

	case event.DirectDelete:
		p, err := decode[event.DirectMessageDelete](r, e.Payload)
		if err != nil {
			return err
		}
		r.emitUser(p.ReceiverID, event.DirectDeleted, p)
		return nil

	case event.GroupSend:
		p, err := decode[event.GroupMessage](r, e.Payload)
		if err != nil {
			return err
		}
		return r.groupSend(ctx, c, p)

	case event.GroupUpdate:
		p, err := decode[event.GroupMessage](r, e.Payload)
		if err != nil {
			return err
		}
		r.emitRoom(p.GroupID, c, event.GroupUpdated, p)
		return nil

	case event.GroupDelete:
		p, err := decode[event.GroupMessageDelete](r, e.Payload)
		if err != nil {
			return err
		}
		r.emitRoom(p.GroupID, c, event.GroupDeleted, p)
		return nil

	case event.FriendRequest, event.FriendAccept, event.FriendReject, event.FriendCancel:
		p, err := decode[event.FriendUpdate](r, e.Payload)
		if err != nil {
			return err
		}
		r.emitUser(p.TargetID, friendOutbound(e.Name), p.Request)
		return nil

	case event.UserBlock:
		p, err := decode[event.UserTarget](r, e.Payload)
		if err != nil {
			return err
		}
		r.emitUser(p.TargetID, event.UserBlocked, event.Actor{UserID: c.userID})
		return nil

	case event.UserUnblock:
		p, err := decode[event.UserTarget](r, e.Payload)
		if err != nil {
			return err
		}
		r.emitUser(p.TargetID, event.UserUnblocked, event.Actor{UserID: c.userID})
		return nil

	case event.AccountDelete:
		r.emitAll(c, event.AccountDeleted, event.Actor{UserID: c.userID})
		return nil

	case event.StatusToggle:
		p, err := decode[event.Status](r, e.Payload)
		if err != nil {
			return err
		}
		r.emitAll(c, event.PresenceChanged, event.Presence{UserID: c.userID, Online: p.Online})
		return nil

	case event.GroupCreate:
		p, err := decode[event.GroupRef](r, e.Payload)
		if err != nil {
			return err
		}
		return r.groupCreated(ctx, c, p.GroupID)

	case event.GroupAddMember:
		p, err := decode[event.GroupMemberChange](r, e.Payload)
		if err != nil {
			return err
		}
		return r.addMemberLive(ctx, p.GroupID, p.UserID)

	case event.GroupKickMember:
		p, err := decode[event.GroupMemberChange](r, e.Payload)
		if err != nil {
			return err
		}
		return r.removeMemberLive(ctx, p.GroupID, p.UserID)

	case event.GroupDestroy:
		p, err := decode[event.GroupRef](r, e.Payload)
		if err != nil {
			return err
		}
		r.emitRoom(p.GroupID, c, event.GroupDestroyed, event.GroupRef{GroupID: p.GroupID})
		r.rooms.DropRoom(p.GroupID)
		return nil

	case event.GroupRename:
		p, err := decode[event.GroupNameChange](r, e.Payload)
		if err != nil {
			return err
		}
		return r.groupChanged(ctx, c, p.GroupID)

	case event.GroupPhoto:
		p, err := decode[event.GroupPhotoChange](r, e.Payload)
		if err != nil {
			return err
		}
		return r.groupChanged(ctx, c, p.GroupID)

	case event.GroupAdminMode:
		p, err := decode[event.GroupAdminModeChange](r, e.Payload)
		if err != nil {
			return err
		}
		return r.groupChanged(ctx, c, p.GroupID)

	case event.GroupMemberRole:
		p, err := decode[event.GroupRoleChange](r, e.Payload)
		if err != nil {
			return err
		}
		return r.groupChanged(ctx, c, p.GroupID)

	default:
		return fmt.Errorf("unknown event %q", e.Name)
	}
}

/*
directSend creates the notification record first, then forwards both the
message and the notification to the receiver if (and only if) they are
online.  The message itself was stored by the HTTP layer before this event
fired, so an offline receiver means zero emissions, not a failure.
*/
func (r *Router) directSend(ctx context.Context, c *client, p event.DirectMessage) error {
	n, err := r.store.CreateDirectNotification(ctx, c.userID, p.FriendID, p.ReceiverID)
	if err != nil {
		return err
	}
	// The receiver may go offline between these two emissions; each lookup
	// degrades to a silent skip on its own.
	r.emitUser(p.ReceiverID, event.DirectReceive, p)
	r.emitUser(p.ReceiverID, event.NotificationDirect, n)
	return nil
}

/*
groupSend persists one group notification plus one recipient row per member
except the sender, then emits the message and a notification summary to the
room, excluding the sender's own connection.
*/
func (r *Router) groupSend(ctx context.Context, c *client, p event.GroupMessage) error {
	n, err := r.store.CreateGroupNotification(ctx, p.GroupID, c.userID)
	if err != nil {
		return err
	}
	memberIDs, err := r.store.GroupMemberIDs(ctx, p.GroupID, c.userID)
	if err != nil {
		return err
	}
	if err := r.store.AddNotificationRecipients(ctx, n.ID, memberIDs); err != nil {
		return err
	}
	r.emitRoom(p.GroupID, c, event.GroupReceive, p)
	r.emitRoom(p.GroupID, c, event.NotificationGroup, n)
	return nil
}

/*
groupCreated joins every currently-connected member of a freshly created
group to its room and notifies everyone except the creator.  Offline members
learn about the group on their next connect, when rooms are rebuilt from the
store.
*/
func (r *Router) groupCreated(ctx context.Context, creator *client, groupID string) error {
	g, err := r.store.GroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	memberIDs, err := r.store.GroupMemberIDs(ctx, groupID, "")
	if err != nil {
		return err
	}

	raw := event.Encode(event.GroupCreated, groupInfo(g))
	r.bridge.Publish("room."+groupID, raw)

	for _, mc := range r.memberClients(memberIDs) {
		r.rooms.Join(groupID, mc)
		if mc != creator {
			mc.trySend(raw)
		}
	}
	return nil
}

/*
addMemberLive patches room membership for a member added while connected: the
member's connection joins the room and hears it was added; the rest of the
room hears the group changed.  An offline member is a realtime no-op.
*/
func (r *Router) addMemberLive(ctx context.Context, groupID, userID string) error {
	g, err := r.store.GroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	mc, online := r.registry.Lookup(userID)
	if online {
		r.rooms.Join(groupID, mc)
		r.emitTo(mc, event.GroupJoined, groupInfo(g))
	}
	r.emitRoom(groupID, mc, event.GroupChanged, groupInfo(g))
	return nil
}

/*
removeMemberLive evicts a removed member's connection from the room so no
subsequent room event reaches it, tells the member it was removed, then tells
the remaining room the group changed.
*/
func (r *Router) removeMemberLive(ctx context.Context, groupID, userID string) error {
	g, err := r.store.GroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	mc, online := r.registry.Lookup(userID)
	if online {
		r.rooms.Leave(groupID, mc)
		r.emitTo(mc, event.GroupLeft, event.GroupRef{GroupID: groupID})
	}
	r.emitRoom(groupID, nil, event.GroupChanged, groupInfo(g))
	return nil
}

// groupChanged re-reads the group record (the HTTP layer already mutated it)
// and emits it to the room, excluding the actor.
func (r *Router) groupChanged(ctx context.Context, actor *client, groupID string) error {
	g, err := r.store.GroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	r.emitRoom(groupID, actor, event.GroupChanged, groupInfo(g))
	return nil
}

// emitUser delivers one event to a single user, silently skipping offline
// recipients.  The bridge copy is published regardless, so push workers can
// reach users this instance cannot.
func (r *Router) emitUser(userID string, name event.Name, payload any) bool {
	raw := event.Encode(name, payload)
	r.bridge.Publish("user."+userID, raw)

	c, ok := r.registry.Lookup(userID)
	if !ok {
		r.log.Debug("recipient offline, skipping delivery",
			"event", name, "user_id", userID)
		return false
	}
	return c.trySend(raw)
}

func (r *Router) emitTo(c *client, name event.Name, payload any) {
	raw := event.Encode(name, payload)
	r.bridge.Publish("user."+c.userID, raw)
	c.trySend(raw)
}

func (r *Router) emitRoom(roomID string, except *client, name event.Name, payload any) {
	raw := event.Encode(name, payload)
	r.bridge.Publish("room."+roomID, raw)
	r.rooms.Broadcast(roomID, raw, except)
}

func (r *Router) emitAll(except *client, name event.Name, payload any) {
	raw := event.Encode(name, payload)
	r.bridge.Publish("broadcast", raw)
	r.registry.ForEachExcept(except, func(c *client) {
		c.trySend(raw)
	})
}

// decode unmarshals a raw payload into its typed struct and validates it.
// Handlers never destructure optimistically; a missing required field is
// answered with an error event instead of fanning out empty fields.
func decode[T any](r *Router, raw json.RawMessage) (T, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("malformed payload: %w", err)
	}
	if err := r.validate.Struct(p); err != nil {
		return p, fmt.Errorf("invalid payload: %w", err)
	}
	return p, nil
}

func friendOutbound(in event.Name) event.Name {
	return map[event.Name]event.Name{
		event.FriendRequest: event.FriendRequested,
		event.FriendAccept:  event.FriendAccepted,
		event.FriendReject:  event.FriendRejected,
		event.FriendCancel:  event.FriendCancelled,
	}[in]
}

func groupInfo(g *store.Group) event.GroupInfo {
	return event.GroupInfo{
		ID:        g.ID,
		Name:      g.Name,
		PhotoURL:  g.PhotoURL,
		AdminOnly: g.AdminOnly,
	}
}

// memberClients resolves currently-connected members, preserving store
// order.
func (r *Router) memberClients(memberIDs []string) []*client {
	return lo.FilterMap(memberIDs, func(id string, _ int) (*client, bool) {
		c, ok := r.registry.Lookup(id)
		return c, ok
	})
}
