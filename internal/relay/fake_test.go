package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"relaybot/internal/storage"
	kit "relaybot/internal/transport"
	"relaybot/internal/transport/telegram/router"
	logx "relaybot/pkg/logx"
)

type sentText struct {
	to   int64
	text string
}

type copyCall struct {
	to, from int64
	msgID    int
}

type fakeAdapter struct {
	mu      sync.Mutex
	sent    []sentText
	edits   []string
	answers []string
	copies  []copyCall

	copyErr   map[int64][]error // per target, consumed in order
	status    map[int64]string  // chat id -> status of any user
	statusErr map[int64]error
	botStatus string
	copyPanic any
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		copyErr:   map[int64][]error{},
		status:    map[int64]string{},
		statusErr: map[int64]error{},
		botStatus: kit.StatusAdministrator,
	}
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentText{to: to.ChatID, text: text})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) EditText(_ context.Context, _ kit.MessageRef, text string, _ *kit.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeAdapter) CopyMessage(_ context.Context, to, from int64, msgID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, copyCall{to: to, from: from, msgID: msgID})
	if f.copyPanic != nil {
		panic(f.copyPanic)
	}
	if q := f.copyErr[to]; len(q) > 0 {
		f.copyErr[to] = q[1:]
		return q[0]
	}
	return nil
}

func (f *fakeAdapter) ChatMemberStatus(_ context.Context, chatID, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if userID == f.BotID() {
		return f.botStatus, nil
	}
	if err := f.statusErr[chatID]; err != nil {
		return "", err
	}
	return f.status[chatID], nil
}

func (f *fakeAdapter) BotID() int64 { return 1 }

func (f *fakeAdapter) textsTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.to == chatID {
			out = append(out, s.text)
		}
	}
	return out
}

func (f *fakeAdapter) lastTo(chatID int64) string {
	all := f.textsTo(chatID)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

func (f *fakeAdapter) copyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.copies)
}

var errStoreDown = errors.New("store unavailable")

// failingStore wraps a memory store and fails the selected calls.
type failingStore struct {
	*storage.Memory
	addAdmin, setChat, listUsers, listChats bool
}

func (s *failingStore) AddAdmin(ctx context.Context, id int64) error {
	if s.addAdmin {
		return errStoreDown
	}
	return s.Memory.AddAdmin(ctx, id)
}

func (s *failingStore) SetChat(ctx context.Context, e storage.ChatEntry) error {
	if s.setChat {
		return errStoreDown
	}
	return s.Memory.SetChat(ctx, e)
}

func (s *failingStore) ListUsers(ctx context.Context) ([]int64, error) {
	if s.listUsers {
		return nil, errStoreDown
	}
	return s.Memory.ListUsers(ctx)
}

func (s *failingStore) ListChats(ctx context.Context) (map[string]storage.ChatEntry, error) {
	if s.listChats {
		return nil, errStoreDown
	}
	return s.Memory.ListChats(ctx)
}

type testEnv struct {
	e        *Engine
	ad       *fakeAdapter
	st       *storage.Memory
	fail     *failingStore
	settings Settings
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{ad: newFakeAdapter(), st: storage.NewMemory()}
	env.fail = &failingStore{Memory: env.st}
	env.e = New(Deps{
		Adapter:  env.ad,
		Store:    env.fail,
		Logger:   logx.Nop(),
		Settings: func() Settings { return env.settings },
	})
	t.Cleanup(func() { _ = env.st.Close() })
	return env
}

func (env *testEnv) handle(t *testing.T, req *router.Request) {
	t.Helper()
	if err := env.e.Handle(context.Background(), req); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func privateMsg(from int64, id int, text string) *router.Request {
	return router.NewRequest(kit.Update{
		Kind:    kit.UpdateMessage,
		Message: &kit.Message{ID: id, ChatID: from, FromID: from, Text: text, IsPrivate: true},
	})
}

func forwardMsg(from int64, originChat int64) *router.Request {
	return router.NewRequest(kit.Update{
		Kind: kit.UpdateMessage,
		Message: &kit.Message{
			ID: 9, ChatID: from, FromID: from, Text: "fwd", IsPrivate: true,
			Forwarded: true, ForwardChatID: originChat,
		},
	})
}

func callback(from int64, data string) *router.Request {
	return router.NewRequest(kit.Update{
		Kind:     kit.UpdateCallback,
		Callback: &kit.Callback{ID: "cb", FromID: from, ChatID: from, Data: data},
	})
}
