package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/repository"
)

var (
	_ repository.UserRepository    = (*UserRepo)(nil)
	_ repository.ServerRepository  = (*ServerRepo)(nil)
	_ repository.RoomRepository    = (*RoomRepo)(nil)
	_ repository.MessageRepository = (*MessageRepo)(nil)
)

type fixture struct {
	store   *Store
	server  domain.Server
	member  domain.Member
	general domain.Channel
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := NewStore()
	now := time.Now().UTC()

	user := domain.User{ID: uuid.New(), Email: "a@example.com", Username: "alice", DisplayName: "Alice", CreatedAt: now}
	require.NoError(t, store.Users().Create(ctx, &user))

	server := domain.Server{ID: uuid.New(), Name: "test", InviteCode: uuid.NewString(), OwnerID: user.ID, CreatedAt: now}
	member := domain.Member{ID: uuid.New(), ServerID: server.ID, UserID: user.ID, Role: domain.RoleAdmin, CreatedAt: now}
	general := domain.Channel{ID: uuid.New(), ServerID: server.ID, Name: domain.DefaultChannelName, Type: domain.ChannelTypeText, CreatedBy: user.ID, CreatedAt: now}
	require.NoError(t, store.Servers().Create(ctx, &server, &member, &general))

	return fixture{store: store, server: server, member: member, general: general}
}

func (f fixture) send(t *testing.T, content string) domain.Message {
	t.Helper()
	now := time.Now().UTC()
	msg := domain.Message{ID: uuid.New(), RoomID: f.general.ID, AuthorID: f.member.ID, Content: &content, Version: 1, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.store.Messages().Create(context.Background(), &msg))
	return msg
}

func TestUserConflict(t *testing.T) {
	f := newFixture(t)
	err := f.store.Users().Create(context.Background(), &domain.User{ID: uuid.New(), Email: "a@example.com", Username: "other"})
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestCreateMessageAssignsSequence(t *testing.T) {
	f := newFixture(t)
	first := f.send(t, "one")
	second := f.send(t, "two")
	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, int64(2), second.Sequence)

	room, err := f.store.Rooms().GetRoom(context.Background(), f.general.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), room.LastSequence)

	got, err := f.store.Messages().GetByID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.AuthorUsername)
	assert.Equal(t, domain.RoleAdmin, got.AuthorRole)
}

func TestCreateMessageUnknownRoom(t *testing.T) {
	f := newFixture(t)
	content := "x"
	msg := domain.Message{ID: uuid.New(), RoomID: uuid.New(), AuthorID: f.member.ID, Content: &content}
	err := f.store.Messages().Create(context.Background(), &msg)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestConcurrentCreateKeepsHistoryInSequenceOrder(t *testing.T) {
	f := newFixture(t)
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.send(t, "hi")
		}()
	}
	wg.Wait()

	msgs, err := f.store.Messages().List(context.Background(), repository.MessageQuery{RoomID: f.general.ID, Limit: n})
	require.NoError(t, err)
	require.Len(t, msgs, n)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Sequence)
	}
}

func TestListCursors(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		f.send(t, "m")
	}
	repo := f.store.Messages()
	ctx := context.Background()

	latest, err := repo.List(ctx, repository.MessageQuery{RoomID: f.general.ID, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{8, 9, 10}, sequences(latest))

	before := int64(8)
	older, err := repo.List(ctx, repository.MessageQuery{RoomID: f.general.ID, Before: &before, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6, 7}, sequences(older))

	after := int64(2)
	newer, err := repo.List(ctx, repository.MessageQuery{RoomID: f.general.ID, After: &after, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4, 5}, sequences(newer))

	first := int64(1)
	none, err := repo.List(ctx, repository.MessageQuery{RoomID: f.general.ID, Before: &first, Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateAndSoftDelete(t *testing.T) {
	f := newFixture(t)
	msg := f.send(t, "draft")
	repo := f.store.Messages()
	ctx := context.Background()

	edited, err := repo.UpdateContent(ctx, msg.ID, "final")
	require.NoError(t, err)
	require.NotNil(t, edited)
	assert.Equal(t, "final", *edited.Content)
	assert.Equal(t, int64(2), edited.Version)
	assert.NotNil(t, edited.EditedAt)

	deleted, changed, err := repo.SoftDelete(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, deleted.Deleted)
	assert.Nil(t, deleted.Content)
	assert.Equal(t, int64(3), deleted.Version)

	again, changed, err := repo.SoftDelete(ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int64(3), again.Version)

	noop, err := repo.UpdateContent(ctx, msg.ID, "resurrect")
	require.NoError(t, err)
	assert.Nil(t, noop)
}

func TestConversationGetOrCreate(t *testing.T) {
	f := newFixture(t)
	a, b := domain.CanonicalPair(uuid.New(), uuid.New())
	rooms := f.store.Rooms()
	ctx := context.Background()

	first, err := rooms.CreateConversation(ctx, &domain.Conversation{ID: uuid.New(), ServerID: f.server.ID, MemberOneID: a, MemberTwoID: b})
	require.NoError(t, err)
	second, err := rooms.CreateConversation(ctx, &domain.Conversation{ID: uuid.New(), ServerID: f.server.ID, MemberOneID: a, MemberTwoID: b})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	room, err := rooms.GetRoom(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomKindConversation, room.Kind)
}

func TestDeleteServerCascades(t *testing.T) {
	f := newFixture(t)
	msg := f.send(t, "bye")
	ctx := context.Background()

	require.NoError(t, f.store.Servers().Delete(ctx, f.server.ID))

	room, err := f.store.Rooms().GetRoom(ctx, f.general.ID)
	require.NoError(t, err)
	assert.Nil(t, room)
	got, err := f.store.Messages().GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	member, err := f.store.Servers().GetMember(ctx, f.server.ID, f.member.UserID)
	require.NoError(t, err)
	assert.Nil(t, member)
}

func TestRemovedMemberKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	servers := f.store.Servers()

	bob := domain.User{ID: uuid.New(), Email: "b@example.com", Username: "bob", DisplayName: "Bob"}
	require.NoError(t, f.store.Users().Create(ctx, &bob))
	guest := domain.Member{ID: uuid.New(), ServerID: f.server.ID, UserID: bob.ID, Role: domain.RoleGuest, CreatedAt: time.Now().UTC()}
	require.NoError(t, servers.AddMember(ctx, &guest))

	content := "written before leaving"
	msg := domain.Message{ID: uuid.New(), RoomID: f.general.ID, AuthorID: guest.ID, Content: &content, Version: 1}
	require.NoError(t, f.store.Messages().Create(ctx, &msg))

	one, two := domain.CanonicalPair(f.member.ID, guest.ID)
	conv, err := f.store.Rooms().CreateConversation(ctx, &domain.Conversation{ID: uuid.New(), ServerID: f.server.ID, MemberOneID: one, MemberTwoID: two})
	require.NoError(t, err)

	require.NoError(t, servers.RemoveMember(ctx, guest.ID))

	got, err := f.store.Messages().GetByID(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bob", got.AuthorUsername)
	msgs, err := f.store.Messages().List(ctx, repository.MessageQuery{RoomID: f.general.ID, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	stored, err := f.store.Rooms().GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)

	gone, err := servers.GetMember(ctx, f.server.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	members, err := servers.ListMembers(ctx, f.server.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	// rejoining reuses the old membership
	again := domain.Member{ID: uuid.New(), ServerID: f.server.ID, UserID: bob.ID, Role: domain.RoleGuest, CreatedAt: time.Now().UTC()}
	require.NoError(t, servers.AddMember(ctx, &again))
	assert.Equal(t, guest.ID, again.ID)
	dup := domain.Member{ID: uuid.New(), ServerID: f.server.ID, UserID: bob.ID, Role: domain.RoleGuest}
	assert.True(t, errors.Is(servers.AddMember(ctx, &dup), domain.ErrConflict))
}

func sequences(msgs []domain.Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Sequence)
	}
	return out
}
