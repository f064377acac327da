/*
Package store is the persistence collaborator of the realtime layer.  The
router only reads group membership, flips online flags and creates
notification bookkeeping; all content writes (messages, friend requests,
group mutations) belong to the HTTP layer, which shares this store.
*/
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("store: not found")

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

type Group struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PhotoURL  string `json:"photoUrl,omitempty"`
	AdminOnly bool   `json:"adminOnly"`
	CreatorID string `json:"creatorId"`
}

// NotificationKind discriminates the two notification families.
type NotificationKind string

const (
	NotificationFriend NotificationKind = "FRIEND"
	NotificationGroup  NotificationKind = "GROUP"
)

// Notification is the persisted marker that a user has an unseen event.  It
// is distinct from the message content itself, which the HTTP layer owns.
type Notification struct {
	ID         string           `json:"id"`
	Kind       NotificationKind `json:"kind"`
	SenderID   string           `json:"senderId"`
	FriendID   string           `json:"friendId,omitempty"`
	ReceiverID string           `json:"receiverId,omitempty"`
	GroupID    string           `json:"groupId,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

/*
Store is the surface the event router depends on.  Implementations must treat
SetOnline for a deleted user as a soft miss (nil record, nil error) because a
disconnect can race an account deletion.
*/
type Store interface {
	// UserGroupIDs returns the ids of every group the user belongs to.
	UserGroupIDs(ctx context.Context, userID string) ([]string, error)

	// SetOnline persists the user's online flag and returns the updated
	// record, or (nil, nil) when the user no longer exists.
	SetOnline(ctx context.Context, userID string, online bool) (*User, error)

	// CreateDirectNotification records an unseen-direct-message marker for
	// the receiver.
	CreateDirectNotification(ctx context.Context, senderID, friendID, receiverID string) (*Notification, error)

	// CreateGroupNotification records an unseen-group-message marker for the
	// group.  Recipient rows are attached separately.
	CreateGroupNotification(ctx context.Context, groupID, senderID string) (*Notification, error)

	// GroupMemberIDs lists member ids of a group, excluding excludeUserID
	// when non-empty.
	GroupMemberIDs(ctx context.Context, groupID, excludeUserID string) ([]string, error)

	// AddNotificationRecipients attaches one recipient row per user to a
	// group notification.
	AddNotificationRecipients(ctx context.Context, notificationID string, userIDs []string) error

	// GroupByID fetches a group record.  Returns ErrNotFound for unknown ids.
	GroupByID(ctx context.Context, groupID string) (*Group, error)
}
