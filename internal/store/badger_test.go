package store

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerStore(db, slog.New(slog.DiscardHandler))
}

func TestSetOnline_Flips_The_Stored_Flag(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()
	userID := uuid.NewString()
	req.NoError(s.PutUser(ctx, User{ID: userID, Username: "mo", Online: false}))

	u, err := s.SetOnline(ctx, userID, true)

	req.NoError(err)
	req.NotNil(u)
	req.True(u.Online)
	req.Equal("mo", u.Username)

	stored, err := s.UserByID(ctx, userID)
	req.NoError(err)
	req.True(stored.Online)
}

func TestSetOnline_Missing_User_Returns_Nil_Without_Error(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	u, err := s.SetOnline(context.Background(), uuid.NewString(), true)

	req.NoError(err)
	req.Nil(u)
}

func TestCreateGroup_Indexes_Membership_Both_Ways(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()
	creator := uuid.NewString()
	member := uuid.NewString()
	g := Group{ID: uuid.NewString(), Name: "hikers", CreatorID: creator}

	req.NoError(s.CreateGroup(ctx, g, []string{creator, member}))

	ids, err := s.GroupMemberIDs(ctx, g.ID, "")
	req.NoError(err)
	req.ElementsMatch([]string{creator, member}, ids)

	groups, err := s.UserGroupIDs(ctx, member)
	req.NoError(err)
	req.Equal([]string{g.ID}, groups)

	got, err := s.GroupByID(ctx, g.ID)
	req.NoError(err)
	req.Equal("hikers", got.Name)
}

func TestGroupMemberIDs_Excludes_The_Requested_User(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()
	sender := uuid.NewString()
	other := uuid.NewString()
	g := Group{ID: uuid.NewString(), CreatorID: sender}
	req.NoError(s.CreateGroup(ctx, g, []string{sender, other}))

	ids, err := s.GroupMemberIDs(ctx, g.ID, sender)

	req.NoError(err)
	req.Equal([]string{other}, ids)
}

func TestGroupByID_Unknown_Group_Is_ErrNotFound(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	_, err := s.GroupByID(context.Background(), uuid.NewString())

	req.ErrorIs(err, ErrNotFound)
}

func TestAddMember_And_RemoveMember_Keep_Both_Indexes_In_Sync(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()
	creator := uuid.NewString()
	joined := uuid.NewString()
	g := Group{ID: uuid.NewString(), CreatorID: creator}
	req.NoError(s.CreateGroup(ctx, g, []string{creator}))

	req.NoError(s.AddMember(ctx, g.ID, joined, "MEMBER"))
	ids, err := s.GroupMemberIDs(ctx, g.ID, "")
	req.NoError(err)
	req.ElementsMatch([]string{creator, joined}, ids)
	groups, err := s.UserGroupIDs(ctx, joined)
	req.NoError(err)
	req.Equal([]string{g.ID}, groups)

	req.NoError(s.RemoveMember(ctx, g.ID, joined))
	ids, err = s.GroupMemberIDs(ctx, g.ID, "")
	req.NoError(err)
	req.Equal([]string{creator}, ids)
	groups, err = s.UserGroupIDs(ctx, joined)
	req.NoError(err)
	req.Empty(groups)
}

func TestSetMemberRole_Unknown_Member_Is_ErrNotFound(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()
	g := Group{ID: uuid.NewString()}
	req.NoError(s.CreateGroup(ctx, g, nil))

	err := s.SetMemberRole(ctx, g.ID, uuid.NewString(), "ADMIN")

	req.ErrorIs(err, ErrNotFound)
}

func TestUpdateGroup_Applies_The_Mutation(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()
	g := Group{ID: uuid.NewString(), Name: "old"}
	req.NoError(s.CreateGroup(ctx, g, nil))

	updated, err := s.UpdateGroup(ctx, g.ID, func(g *Group) {
		g.Name = "new"
		g.AdminOnly = true
	})

	req.NoError(err)
	req.Equal("new", updated.Name)
	req.True(updated.AdminOnly)

	stored, err := s.GroupByID(ctx, g.ID)
	req.NoError(err)
	req.Equal("new", stored.Name)
}

func TestDeleteGroup_Removes_Record_And_Membership_Rows(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()
	member := uuid.NewString()
	g := Group{ID: uuid.NewString(), CreatorID: member}
	req.NoError(s.CreateGroup(ctx, g, []string{member}))

	req.NoError(s.DeleteGroup(ctx, g.ID))

	_, err := s.GroupByID(ctx, g.ID)
	req.ErrorIs(err, ErrNotFound)
	groups, err := s.UserGroupIDs(ctx, member)
	req.NoError(err)
	req.Empty(groups)
}

func TestNotifications_Round_Trip_With_Recipient_Rows(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()
	sender := uuid.NewString()
	receiver := uuid.NewString()
	friendID := uuid.NewString()

	direct, err := s.CreateDirectNotification(ctx, sender, friendID, receiver)
	req.NoError(err)
	req.Equal(NotificationFriend, direct.Kind)
	req.Equal(receiver, direct.ReceiverID)
	req.NotEmpty(direct.ID)
	req.False(direct.CreatedAt.IsZero())

	groupID := uuid.NewString()
	group, err := s.CreateGroupNotification(ctx, groupID, sender)
	req.NoError(err)
	req.Equal(NotificationGroup, group.Kind)
	req.Equal(groupID, group.GroupID)

	recipients := []string{uuid.NewString(), uuid.NewString()}
	req.NoError(s.AddNotificationRecipients(ctx, group.ID, recipients))
	got, err := s.NotificationRecipientIDs(ctx, group.ID)
	req.NoError(err)
	req.ElementsMatch(recipients, got)
}
