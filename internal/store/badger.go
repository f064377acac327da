package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Key families.  Membership is kept under two prefixes so that both "members
// of group" and "groups of user" are prefix scans:
//
//	user:{userId}                          -> User
//	group:{groupId}                        -> Group
//	member:{groupId}:{userId}              -> role
//	usergroup:{userId}:{groupId}           -> ""
//	notif:{timestamp_padded}:{uuid}        -> Notification
//	notifrcpt:{notificationId}:{userId}    -> ""
//
// Notification keys embed a 19-digit zero-padded UnixNano so lexicographic
// order is chronological, with the UUID disambiguating same-nanosecond
// writes.
const (
	prefixUser      = "user:"
	prefixGroup     = "group:"
	prefixMember    = "member:"
	prefixUserGroup = "usergroup:"
	prefixNotif     = "notif:"
	prefixNotifRcpt = "notifrcpt:"
)

// BadgerStore persists users, groups, membership and notifications in a
// local BadgerDB instance shared with the HTTP layer.
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerStore(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{db: db, log: log}
}

func memberKey(groupID, userID string) []byte {
	return []byte(prefixMember + groupID + ":" + userID)
}

func userGroupKey(userID, groupID string) []byte {
	return []byte(prefixUserGroup + userID + ":" + groupID)
}

func notifKey(n Notification) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", prefixNotif, n.CreatedAt.UnixNano(), n.ID))
}

func (s *BadgerStore) UserGroupIDs(_ context.Context, userID string) ([]string, error) {
	var ids []string
	prefix := []byte(prefixUserGroup + userID + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning groups of user %s: %w", userID, err)
	}
	return ids, nil
}

func (s *BadgerStore) SetOnline(_ context.Context, userID string, online bool) (*User, error) {
	var user *User
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixUser + userID))
		if err != nil {
			return err
		}
		var u User
		if err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &u)
		}); err != nil {
			return err
		}
		u.Online = online
		raw, err := json.Marshal(u)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixUser+userID), raw); err != nil {
			return err
		}
		user = &u
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		// The account may have been deleted while the connection was live.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("updating online flag for %s: %w", userID, err)
	}
	s.log.Debug("online flag updated", "user_id", userID, "online", online)
	return user, nil
}

func (s *BadgerStore) CreateDirectNotification(_ context.Context, senderID, friendID, receiverID string) (*Notification, error) {
	n := Notification{
		ID:         uuid.NewString(),
		Kind:       NotificationFriend,
		SenderID:   senderID,
		FriendID:   friendID,
		ReceiverID: receiverID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.putNotification(n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *BadgerStore) CreateGroupNotification(_ context.Context, groupID, senderID string) (*Notification, error) {
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      NotificationGroup,
		SenderID:  senderID,
		GroupID:   groupID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.putNotification(n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *BadgerStore) putNotification(n Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(notifKey(n), raw)
	})
	if err != nil {
		return fmt.Errorf("storing notification %s: %w", n.ID, err)
	}
	return nil
}

func (s *BadgerStore) GroupMemberIDs(_ context.Context, groupID, excludeUserID string) ([]string, error) {
	var ids []string
	prefix := []byte(prefixMember + groupID + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefix):])
			if id == excludeUserID {
				continue
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning members of group %s: %w", groupID, err)
	}
	return ids, nil
}

func (s *BadgerStore) AddNotificationRecipients(_ context.Context, notificationID string, userIDs []string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, userID := range userIDs {
			key := []byte(prefixNotifRcpt + notificationID + ":" + userID)
			if err := txn.Set(key, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing recipients of notification %s: %w", notificationID, err)
	}
	return nil
}

func (s *BadgerStore) GroupByID(_ context.Context, groupID string) (*Group, error) {
	var g Group
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixGroup + groupID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &g)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching group %s: %w", groupID, err)
	}
	return &g, nil
}

// NotificationRecipientIDs lists the recipient rows of a group notification.
func (s *BadgerStore) NotificationRecipientIDs(_ context.Context, notificationID string) ([]string, error) {
	var ids []string
	prefix := []byte(prefixNotifRcpt + notificationID + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// The write operations below belong to the HTTP CRUD layer, which shares
// this store.  The realtime layer itself never calls them.

func (s *BadgerStore) PutUser(_ context.Context, u User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixUser+u.ID), raw)
	})
}

func (s *BadgerStore) UserByID(_ context.Context, userID string) (*User, error) {
	var u User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixUser + userID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &u)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateGroup stores the group record and a membership row per member.  The
// creator is always a member with the ADMIN role.
func (s *BadgerStore) CreateGroup(_ context.Context, g Group, memberIDs []string) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixGroup+g.ID), raw); err != nil {
			return err
		}
		for _, userID := range memberIDs {
			role := "MEMBER"
			if userID == g.CreatorID {
				role = "ADMIN"
			}
			if err := txn.Set(memberKey(g.ID, userID), []byte(role)); err != nil {
				return err
			}
			if err := txn.Set(userGroupKey(userID, g.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) AddMember(_ context.Context, groupID, userID, role string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(memberKey(groupID, userID), []byte(role)); err != nil {
			return err
		}
		return txn.Set(userGroupKey(userID, groupID), nil)
	})
}

func (s *BadgerStore) RemoveMember(_ context.Context, groupID, userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(memberKey(groupID, userID)); err != nil {
			return err
		}
		return txn.Delete(userGroupKey(userID, groupID))
	})
}

func (s *BadgerStore) SetMemberRole(_ context.Context, groupID, userID, role string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(groupID, userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return txn.Set(memberKey(groupID, userID), []byte(role))
	})
}

func (s *BadgerStore) UpdateGroup(ctx context.Context, groupID string, mutate func(*Group)) (*Group, error) {
	var g Group
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixGroup + groupID))
		if err != nil {
			return err
		}
		if err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &g)
		}); err != nil {
			return err
		}
		mutate(&g)
		raw, err := json.Marshal(g)
		if err != nil {
			return err
		}
		return txn.Set([]byte(prefixGroup+groupID), raw)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteGroup removes the group record and every membership row, both
// directions.
func (s *BadgerStore) DeleteGroup(ctx context.Context, groupID string) error {
	memberIDs, err := s.GroupMemberIDs(ctx, groupID, "")
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(prefixGroup + groupID)); err != nil {
			return err
		}
		for _, userID := range memberIDs {
			if err := txn.Delete(memberKey(groupID, userID)); err != nil {
				return err
			}
			if err := txn.Delete(userGroupKey(userID, groupID)); err != nil {
				return err
			}
		}
		return nil
	})
}
