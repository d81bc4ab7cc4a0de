package storage

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"
)

const memAuditLimit = 1000

// record is one mutation. The file driver journals records verbatim.
type record struct {
	Op   string     `json:"op"`
	ID   int64      `json:"id,omitempty"`
	Name string     `json:"name,omitempty"`
	Chat *ChatEntry `json:"chat,omitempty"`
	Text string     `json:"text,omitempty"`
}

const (
	opSetOwner    = "set_owner"
	opSaveUser    = "save_user"
	opAddAdmin    = "add_admin"
	opRemoveAdmin = "remove_admin"
	opSetChat     = "set_chat"
	opDeleteChat  = "delete_chat"
	opSaveMessage = "save_message"
)

// dirState is the whole directory, also the file driver's snapshot format.
type dirState struct {
	Owner    int64                `json:"owner,omitempty"`
	Users    map[int64]bool       `json:"users"`
	Admins   map[int64]bool       `json:"admins"`
	Chats    map[string]ChatEntry `json:"chats"`
	Messages map[int]string       `json:"messages"`
}

func newDirState() *dirState {
	return &dirState{
		Users:    map[int64]bool{},
		Admins:   map[int64]bool{},
		Chats:    map[string]ChatEntry{},
		Messages: map[int]string{},
	}
}

// fill replaces nil maps of a decoded snapshot.
func (st *dirState) fill() {
	if st.Users == nil {
		st.Users = map[int64]bool{}
	}
	if st.Admins == nil {
		st.Admins = map[int64]bool{}
	}
	if st.Chats == nil {
		st.Chats = map[string]ChatEntry{}
	}
	if st.Messages == nil {
		st.Messages = map[int]string{}
	}
}

func (st *dirState) apply(r record) {
	switch r.Op {
	case opSetOwner:
		st.Owner = r.ID
	case opSaveUser:
		st.Users[r.ID] = true
	case opAddAdmin:
		st.Admins[r.ID] = true
	case opRemoveAdmin:
		delete(st.Admins, r.ID)
	case opSetChat:
		if r.Chat != nil {
			st.Chats[r.Chat.Name] = *r.Chat
		}
	case opDeleteChat:
		delete(st.Chats, r.Name)
	case opSaveMessage:
		st.Messages[int(r.ID)] = r.Text
	}
}

// errUnchanged aborts a mutation that would not change the state.
var errUnchanged = errors.New("unchanged")

func chatExists(name string) func(st *dirState) error {
	return func(st *dirState) error {
		if _, ok := st.Chats[name]; !ok {
			return ErrNotFound
		}
		return nil
	}
}

// Memory keeps the directory in memory. persist, when set, runs before a
// mutation is applied; a persist error leaves the state unchanged.
type Memory struct {
	mu      sync.RWMutex
	st      *dirState
	closed  bool
	audit   []AuditEntry
	persist func(r record) error
}

// NewMemory returns an empty process-local store.
func NewMemory() *Memory { return newMemStore(newDirState()) }

func newMemStore(st *dirState) *Memory { return &Memory{st: st} }

func (s *Memory) mutate(ctx context.Context, r record) error {
	return s.mutateIf(ctx, r, nil)
}

// mutateIf applies r when check (if any) passes under the write lock.
func (s *Memory) mutateIf(ctx context.Context, r record, check func(st *dirState) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if check != nil {
		if err := check(s.st); err != nil {
			return err
		}
	}
	if s.persist != nil {
		if err := s.persist(r); err != nil {
			return err
		}
	}
	s.st.apply(r)
	return nil
}

func (s *Memory) read(ctx context.Context, fn func(st *dirState)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	fn(s.st)
	return nil
}

func (s *Memory) GetOwner(ctx context.Context) (id int64, ok bool, err error) {
	err = s.read(ctx, func(st *dirState) { id, ok = st.Owner, st.Owner != 0 })
	return id, ok, err
}

func (s *Memory) SetOwner(ctx context.Context, id int64) error {
	return s.mutate(ctx, record{Op: opSetOwner, ID: id})
}

func (s *Memory) SaveUser(ctx context.Context, id int64) error {
	return s.mutate(ctx, record{Op: opSaveUser, ID: id})
}

func (s *Memory) ListUsers(ctx context.Context) (out []int64, err error) {
	err = s.read(ctx, func(st *dirState) { out = slices.Sorted(maps.Keys(st.Users)) })
	return out, err
}

func (s *Memory) IsAdmin(ctx context.Context, id int64) (ok bool, err error) {
	err = s.read(ctx, func(st *dirState) { ok = st.Admins[id] })
	return ok, err
}

func (s *Memory) AddAdmin(ctx context.Context, id int64) error {
	return s.mutate(ctx, record{Op: opAddAdmin, ID: id})
}

func (s *Memory) RemoveAdmin(ctx context.Context, id int64) error {
	return s.mutate(ctx, record{Op: opRemoveAdmin, ID: id})
}

func (s *Memory) ListAdmins(ctx context.Context) (out []int64, err error) {
	err = s.read(ctx, func(st *dirState) { out = slices.Sorted(maps.Keys(st.Admins)) })
	return out, err
}

func (s *Memory) ListChats(ctx context.Context) (out map[string]ChatEntry, err error) {
	err = s.read(ctx, func(st *dirState) { out = maps.Clone(st.Chats) })
	if out == nil && err == nil {
		out = map[string]ChatEntry{}
	}
	return out, err
}

func (s *Memory) SetChat(ctx context.Context, e ChatEntry) error {
	return s.mutate(ctx, record{Op: opSetChat, Chat: &e})
}

func (s *Memory) DeleteChat(ctx context.Context, name string) error {
	return s.mutateIf(ctx, record{Op: opDeleteChat, Name: name}, chatExists(name))
}

func (s *Memory) SaveMessage(ctx context.Context, id int, text string) error {
	return s.mutate(ctx, record{Op: opSaveMessage, ID: int64(id), Text: text})
}

func (s *Memory) AllMessages(ctx context.Context) (out map[int]string, err error) {
	err = s.read(ctx, func(st *dirState) { out = maps.Clone(st.Messages) })
	if out == nil && err == nil {
		out = map[int]string{}
	}
	return out, err
}

func (s *Memory) AppendAudit(ctx context.Context, e AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.audit = append(s.audit, e)
	if len(s.audit) > memAuditLimit {
		s.audit = slices.Delete(s.audit, 0, len(s.audit)-memAuditLimit)
	}
	return nil
}

// Audit returns a copy of the retained audit entries, oldest first.
func (s *Memory) Audit() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.audit)
}

func (s *Memory) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
