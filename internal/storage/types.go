package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed   = errors.New("storage closed")
	ErrNotFound = errors.New("not found")
)

// Config configures storage. An empty Driver means "memory".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// ChatEntry is a managed chat keyed by its unique name.
type ChatEntry struct {
	Name   string `json:"name"`
	ChatID int64  `json:"chat_id"`
	Link   string `json:"link"`
}

// AuditEntry records a privileged action.
type AuditEntry struct {
	At      time.Time `json:"at"`
	ActorID int64     `json:"actor_id"`
	Action  string    `json:"action"`
	Target  string    `json:"target,omitempty"`
	OK      int       `json:"ok,omitempty"`
	Fail    int       `json:"fail,omitempty"`
	Error   string    `json:"err,omitempty"`
}

// Store is the persistence API used by the relay engine.
// Every call may fail; callers treat an error as a failure of the single action.
type Store interface {
	GetOwner(ctx context.Context) (id int64, ok bool, err error)
	SetOwner(ctx context.Context, id int64) error

	SaveUser(ctx context.Context, id int64) error
	// ListUsers returns user ids in ascending order.
	ListUsers(ctx context.Context) ([]int64, error)

	IsAdmin(ctx context.Context, id int64) (bool, error)
	AddAdmin(ctx context.Context, id int64) error
	RemoveAdmin(ctx context.Context, id int64) error
	// ListAdmins returns admin ids in ascending order.
	ListAdmins(ctx context.Context) ([]int64, error)

	ListChats(ctx context.Context) (map[string]ChatEntry, error)
	// SetChat inserts or overwrites the entry with the same name.
	SetChat(ctx context.Context, e ChatEntry) error
	// DeleteChat returns ErrNotFound when no chat has that name.
	DeleteChat(ctx context.Context, name string) error

	SaveMessage(ctx context.Context, id int, text string) error
	AllMessages(ctx context.Context) (map[int]string, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Compactor is implemented by stores that can fold their journal into a snapshot.
type Compactor interface {
	Compact(ctx context.Context) error
}
