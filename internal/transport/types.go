package transport

import (
	"context"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

// UserID returns the id of the user who caused the update (0 if unknown).
func (u Update) UserID() int64 {
	switch {
	case u.Message != nil:
		return u.Message.FromID
	case u.Callback != nil:
		return u.Callback.FromID
	}
	return 0
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	Caption      string
	IsPrivate    bool
	HasMedia     bool

	// Forwarded is true when the message carries forward-origin metadata.
	// ForwardChatID is the origin chat (0 when the origin is a user or hidden).
	Forwarded     bool
	ForwardChatID int64
}

// Body returns the text, falling back to the media caption.
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode          string
	DisablePreview     bool
	ReplyMarkupAdapter any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// Member statuses reported by ChatMemberStatus.
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
	StatusMember        = "member"
	StatusRestricted    = "restricted"
	StatusLeft          = "left"
	StatusKicked        = "kicked"
)

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error

	// CopyMessage copies messageID from fromChatID into toChatID.
	// Errors are *RateLimitError, ErrForbidden, ErrBadRequest or anything else.
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error
	// ChatMemberStatus returns one of the Status* constants for userID in chatID.
	ChatMemberStatus(ctx context.Context, chatID, userID int64) (string, error)
	// BotID is the bot's own user id.
	BotID() int64
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
