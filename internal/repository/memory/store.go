// Package memory is an in-process implementation of the repository
// interfaces, used by tests and by STORE_DRIVER=memory.
package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/sequence"
)

type Store struct {
	mu sync.RWMutex

	users         map[uuid.UUID]domain.User
	servers       map[uuid.UUID]domain.Server
	members       map[uuid.UUID]domain.Member
	rooms         map[uuid.UUID]domain.Room
	channels      map[uuid.UUID]domain.Channel
	conversations map[uuid.UUID]domain.Conversation
	messages      map[uuid.UUID]domain.Message
	// room id -> message ids in sequence order
	roomMessages map[uuid.UUID][]uuid.UUID

	seq   *sequence.Counter
	locks *sequence.Locker
}

func NewStore() *Store {
	return &Store{
		users:         make(map[uuid.UUID]domain.User),
		servers:       make(map[uuid.UUID]domain.Server),
		members:       make(map[uuid.UUID]domain.Member),
		rooms:         make(map[uuid.UUID]domain.Room),
		channels:      make(map[uuid.UUID]domain.Channel),
		conversations: make(map[uuid.UUID]domain.Conversation),
		messages:      make(map[uuid.UUID]domain.Message),
		roomMessages:  make(map[uuid.UUID][]uuid.UUID),
		seq:           sequence.NewCounter(),
		locks:         sequence.NewLocker(),
	}
}

func (s *Store) Users() *UserRepo       { return &UserRepo{s: s} }
func (s *Store) Servers() *ServerRepo   { return &ServerRepo{s: s} }
func (s *Store) Rooms() *RoomRepo       { return &RoomRepo{s: s} }
func (s *Store) Messages() *MessageRepo { return &MessageRepo{s: s} }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
