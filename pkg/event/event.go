/*
Package event declares the wire protocol spoken over the WebSocket boundary:
the envelope exchanged with clients and the typed payloads of every named
event.  The realtime layer never persists these; they exist only for the
duration of a dispatch.
*/
package event

import (
	"encoding/json"
	"time"
)

/*
Name identifies an event on the wire.  Names are fixed strings rather than an
enum so that clients and out-of-process consumers can match on them without
sharing Go code.
*/
type Name string

const (
	// Events sent by clients.
	DirectSend      Name = "direct:send"
	DirectUpdate    Name = "direct:update"
	DirectDelete    Name = "direct:delete"
	GroupSend       Name = "group:send"
	GroupUpdate     Name = "group:update"
	GroupDelete     Name = "group:delete"
	FriendRequest   Name = "friend:request"
	FriendAccept    Name = "friend:accept"
	FriendReject    Name = "friend:reject"
	FriendCancel    Name = "friend:cancel"
	UserBlock       Name = "user:block"
	UserUnblock     Name = "user:unblock"
	AccountDelete   Name = "account:delete"
	StatusToggle    Name = "status:toggle"
	GroupCreate     Name = "group:create"
	GroupAddMember  Name = "group:add-member"
	GroupKickMember Name = "group:remove-member"
	GroupDestroy    Name = "group:destroy"
	GroupRename     Name = "group:rename"
	GroupPhoto      Name = "group:photo"
	GroupAdminMode  Name = "group:admin-mode"
	GroupMemberRole Name = "group:member-role"

	// Events sent by the server.
	DirectReceive      Name = "direct:receive"
	DirectUpdated      Name = "direct:updated"
	DirectDeleted      Name = "direct:deleted"
	GroupReceive       Name = "group:receive"
	GroupUpdated       Name = "group:updated"
	GroupDeleted       Name = "group:deleted"
	NotificationDirect Name = "notification:direct"
	NotificationGroup  Name = "notification:group"
	FriendRequested    Name = "friend:requested"
	FriendAccepted     Name = "friend:accepted"
	FriendRejected     Name = "friend:rejected"
	FriendCancelled    Name = "friend:cancelled"
	UserBlocked        Name = "user:blocked"
	UserUnblocked      Name = "user:unblocked"
	AccountDeleted     Name = "account:deleted"
	PresenceChanged    Name = "presence:changed"
	GroupCreated       Name = "group:created"
	GroupJoined        Name = "group:joined"
	GroupLeft          Name = "group:left"
	GroupChanged       Name = "group:changed"
	GroupDestroyed     Name = "group:destroyed"
	Error              Name = "error"
)

/*
ClientEvent is the envelope read from a WebSocket connection.  The payload is
kept raw so the router can decode it into the typed struct the event name
calls for.
*/
type ClientEvent struct {
	Payload json.RawMessage `json:"p"`
	Name    Name            `json:"e"`
}

/*
ServerEvent is the envelope written to WebSocket connections.  Payloads are
encoded once and broadcast as raw bytes to avoid re-encoding per recipient.
*/
type ServerEvent struct {
	Payload json.RawMessage `json:"p"`
	Name    Name            `json:"e"`
}

/*
Encode marshals a ServerEvent with the given name and payload into the raw
bytes written to connections.  Payload types in this package cannot fail to
marshal, so the error is treated as a programmer mistake.
*/
func Encode(name Name, payload any) []byte {
	p, err := json.Marshal(payload)
	if err != nil {
		panic("event: cannot encode payload: " + err.Error())
	}
	raw, err := json.Marshal(ServerEvent{Payload: p, Name: name})
	if err != nil {
		panic("event: cannot encode envelope: " + err.Error())
	}
	return raw
}

// Message is a chat message as echoed over the realtime layer.  The HTTP
// layer has already stored it; media fields are set when the message carries
// an uploaded attachment.
type Message struct {
	ID            string    `json:"id" validate:"required"`
	SenderID      string    `json:"senderId" validate:"required"`
	Content       string    `json:"content"`
	MediaURL      string    `json:"mediaUrl,omitempty"`
	MediaPublicID string    `json:"mediaPublicId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type DirectMessage struct {
	ReceiverID string  `json:"receiverId" validate:"required"`
	FriendID   string  `json:"friendId" validate:"required"`
	Message    Message `json:"message" validate:"required"`
}

type DirectMessageUpdate struct {
	ReceiverID string  `json:"receiverId" validate:"required"`
	Message    Message `json:"message" validate:"required"`
}

type DirectMessageDelete struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	MessageID  string `json:"messageId" validate:"required"`
}

type GroupMessage struct {
	GroupID string  `json:"groupId" validate:"required"`
	Message Message `json:"message" validate:"required"`
}

type GroupMessageDelete struct {
	GroupID   string `json:"groupId" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
}

// FriendUpdate covers the whole friend-request lifecycle.  Request carries
// the relation record the HTTP layer produced and is forwarded untouched to
// the other party.
type FriendUpdate struct {
	TargetID string          `json:"targetId" validate:"required"`
	Request  json.RawMessage `json:"request"`
}

type UserTarget struct {
	TargetID string `json:"targetId" validate:"required"`
}

type Status struct {
	Online bool `json:"online"`
}

type GroupRef struct {
	GroupID string `json:"groupId" validate:"required"`
}

type GroupMemberChange struct {
	GroupID string `json:"groupId" validate:"required"`
	UserID  string `json:"userId" validate:"required"`
}

type GroupNameChange struct {
	GroupID string `json:"groupId" validate:"required"`
	Name    string `json:"name" validate:"required"`
}

type GroupPhotoChange struct {
	GroupID  string `json:"groupId" validate:"required"`
	PhotoURL string `json:"photoUrl" validate:"required"`
}

type GroupAdminModeChange struct {
	GroupID   string `json:"groupId" validate:"required"`
	AdminOnly bool   `json:"adminOnly"`
}

type GroupRoleChange struct {
	GroupID string `json:"groupId" validate:"required"`
	UserID  string `json:"userId" validate:"required"`
	Role    string `json:"role" validate:"required,oneof=ADMIN MEMBER"`
}

// Actor identifies the user who performed a broadcast-worthy action (block,
// account deletion).
type Actor struct {
	UserID string `json:"userId"`
}

// Presence is the payload of every presence:changed broadcast.
type Presence struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// GroupInfo is the payload of group lifecycle emissions (created, changed,
// joined).  It mirrors the persisted group record.
type GroupInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PhotoURL  string `json:"photoUrl,omitempty"`
	AdminOnly bool   `json:"adminOnly"`
}

// Problem is the payload of error events emitted back to a connection whose
// event could not be handled.
type Problem struct {
	Event   Name   `json:"event"`
	Message string `json:"message"`
}
