package router

import (
	"strings"

	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"

	"github.com/google/uuid"
)

// Request is one inbound update prepared for a handler.
type Request struct {
	Update kit.Update
	Chat   kit.ChatTarget
	FromID int64

	// Command is the lowercased command word without "/" and "@bot" suffix,
	// empty for plain messages and callbacks.
	Command string
	Args    []string
	// ArgText is everything after the command word, trimmed.
	ArgText string

	ReqID  string
	Logger logx.Logger
}

func (r *Request) Message() *kit.Message   { return r.Update.Message }
func (r *Request) Callback() *kit.Callback { return r.Update.Callback }

// NewRequest wraps an update, parsing the command word of a message.
func NewRequest(up kit.Update) *Request {
	req := &Request{Update: up, FromID: up.UserID(), ReqID: newReqID()}
	switch {
	case up.Message != nil:
		req.Chat = kit.ChatTarget{ChatID: up.Message.ChatID, ThreadID: up.Message.ThreadID}
		req.Command, req.ArgText = parseCommand(up.Message.Text)
		req.Args = strings.Fields(req.ArgText)
	case up.Callback != nil:
		req.Chat = kit.ChatTarget{ChatID: up.Callback.ChatID, ThreadID: up.Callback.ThreadID}
	}
	return req
}

// parseCommand splits "/Find@relay_bot foo bar" into ("find", "foo bar").
func parseCommand(text string) (cmd, rest string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	word, rest, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexAny(word, "\n\t"); i >= 0 {
		rest = word[i+1:] + " " + rest
		word = word[:i]
	}
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	return strings.ToLower(word), strings.TrimSpace(rest)
}

func newReqID() string {
	id := uuid.NewString()
	return id[:8]
}
