package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

type fakeAdapter struct {
	mu       sync.Mutex
	sent     []string
	answered []string
	menu     []kit.BotCommand
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }
func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}
func (f *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) AnswerCallback(ctx context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, text)
	return nil
}
func (f *fakeAdapter) CopyMessage(ctx context.Context, to, from int64, id int) error { return nil }
func (f *fakeAdapter) ChatMemberStatus(ctx context.Context, chat, user int64) (string, error) {
	return kit.StatusMember, nil
}
func (f *fakeAdapter) BotID() int64 { return 1 }
func (f *fakeAdapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	f.menu = cmds
	return nil
}

type recordingHandler struct {
	mu   sync.Mutex
	seen map[int64][]string
	done chan struct{}
	want int
	n    int
}

func (h *recordingHandler) Handle(ctx context.Context, req *Request) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen[req.FromID] = append(h.seen[req.FromID], req.Update.Message.Text)
	h.n++
	if h.n == h.want {
		close(h.done)
	}
	return nil
}

func msg(from int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: from, FromID: from, Text: text, IsPrivate: true}}
}

func TestDispatchKeepsPerUserOrder(t *testing.T) {
	h := &recordingHandler{seen: map[int64][]string{}, done: make(chan struct{}), want: 40}
	r := New(logx.Nop(), &fakeAdapter{}, h, Options{Workers: 3, QueueSize: 64})

	updates := make(chan kit.Update, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.DispatchLoop(ctx, updates) }()

	texts := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	for _, s := range texts {
		for _, user := range []int64{11, 22, 33, 44} {
			updates <- msg(user, s)
		}
	}

	select {
	case <-h.done:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for handlers")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for user, got := range h.seen {
		for i := range texts {
			if got[i] != texts[i] {
				t.Fatalf("user %d order = %v", user, got)
			}
		}
	}
}

func TestRouteRejectsWhenShardFull(t *testing.T) {
	ad := &fakeAdapter{}
	r := New(logx.Nop(), ad, &recordingHandler{seen: map[int64][]string{}}, Options{
		BusyText: func() string { return "busy!" },
	})
	r.shards = []chan func(){make(chan func(), 1)}

	r.Route(context.Background(), msg(5, "first"))
	r.Route(context.Background(), msg(5, "second"))
	r.Route(context.Background(), kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb", FromID: 5, Data: "x"}})

	if len(ad.sent) != 1 || ad.sent[0] != "busy!" {
		t.Fatalf("sent = %v", ad.sent)
	}
	if len(ad.answered) != 1 || ad.answered[0] != "busy!" {
		t.Fatalf("answered = %v", ad.answered)
	}
}

type failingHandler struct{}

func (failingHandler) Handle(ctx context.Context, req *Request) error {
	if req.Command == "panic" {
		panic("boom")
	}
	return errors.New("failed")
}

func TestMiddlewareRecoversPanic(t *testing.T) {
	r := New(logx.Nop(), &fakeAdapter{}, failingHandler{}, Options{Timeout: time.Second})
	err := r.handle(context.Background(), NewRequest(msg(1, "/panic")))
	if err == nil {
		t.Fatalf("expected panic converted to error")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in, cmd, rest string
	}{
		{"/Find@relay_bot  movies 2024 ", "find", "movies 2024"},
		{"/start", "start", ""},
		{"/find\nline", "find", "line"},
		{"hello", "", ""},
		{"  /cancel", "cancel", ""},
	}
	for _, tt := range tests {
		cmd, rest := parseCommand(tt.in)
		if cmd != tt.cmd || rest != tt.rest {
			t.Fatalf("parseCommand(%q) = (%q, %q), want (%q, %q)", tt.in, cmd, rest, tt.cmd, tt.rest)
		}
	}
}

func TestMenuCommands(t *testing.T) {
	got := MenuCommands([]Command{
		{Name: "start", Description: "Start"},
		{Name: "/Set-Owner", Description: ""},
		{Name: "start", Description: "dup"},
		{Name: "manage", Hidden: true},
	})
	if len(got) != 2 || got[0].Command != "start" || got[1].Command != "set_owner" || got[1].Description != "set_owner" {
		t.Fatalf("MenuCommands = %+v", got)
	}

	ad := &fakeAdapter{}
	PublishMenu(context.Background(), logx.Nop(), ad, []Command{{Name: "help", Description: "List"}})
	if len(ad.menu) != 1 {
		t.Fatalf("menu = %+v", ad.menu)
	}
}
