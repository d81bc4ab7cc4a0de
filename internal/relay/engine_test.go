package relay

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"relaybot/internal/runtime/supervisor"
	"relaybot/internal/storage"
	kit "relaybot/internal/transport"
	"relaybot/internal/transport/telegram/router"
	logx "relaybot/pkg/logx"
)

func TestScenarioOwnerClaimThenBroadcast(t *testing.T) {
	ctx := context.Background()
	ad := newFakeAdapter()
	st := storage.NewMemory()
	sup := supervisor.NewSupervisor(ctx)
	e := New(Deps{Adapter: ad, Store: st, Supervisor: sup, Logger: logx.Nop()})
	handle := func(req *router.Request) {
		t.Helper()
		if err := e.Handle(ctx, req); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}

	const a, b = 100, 200
	handle(privateMsg(a, 1, "/setowner"))
	if got := ad.lastTo(a); got != e.tx.Get("owner_set_success") {
		t.Fatalf("A got %q", got)
	}
	handle(privateMsg(b, 2, "/setowner"))
	if got := ad.lastTo(b); got != e.tx.Get("owner_already_set") {
		t.Fatalf("B got %q", got)
	}
	if id, _, _ := st.GetOwner(ctx); id != a {
		t.Fatalf("owner = %d, want %d", id, a)
	}

	for _, u := range []int64{1, 2, 3} {
		_ = st.SaveUser(ctx, u)
	}
	ad.copyErr[2] = []error{kit.ErrForbidden}

	handle(privateMsg(a, 3, "/broadcast"))
	if e.pending.Get(a).Kind != PendingBroadcast {
		t.Fatal("broadcast step not armed")
	}
	handle(privateMsg(a, 77, "hello everyone"))
	if e.pending.Get(a).Kind != PendingNone {
		t.Fatal("broadcast step not cleared")
	}

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	want := e.tx.Format("broadcast_done", "sent", 2, "failed", 1)
	if got := ad.lastTo(a); got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}
	for _, c := range ad.copies {
		if c.from != a || c.msgID != 77 {
			t.Fatalf("copy from %d/%d, want %d/77", c.from, c.msgID, a)
		}
	}
}

func TestScenarioAdminAddsChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const admin = 300
	_ = env.st.AddAdmin(ctx, admin)

	env.handle(t, callback(admin, ActionChatAdd.Data()))
	env.handle(t, privateMsg(admin, 1, "Movies"))
	env.handle(t, privateMsg(admin, 2, "https://t.me/movies"))
	if p := env.e.pending.Get(admin); p.Kind != PendingChatForward || p.ChatName != "Movies" {
		t.Fatalf("pending = %+v", p)
	}
	env.handle(t, forwardMsg(admin, 555))

	chats, err := env.st.ListChats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]storage.ChatEntry{"Movies": {Name: "Movies", ChatID: 555, Link: "https://t.me/movies"}}
	if !reflect.DeepEqual(chats, want) {
		t.Fatalf("chats = %+v", chats)
	}
	if env.e.pending.Get(admin).Kind != PendingNone {
		t.Fatal("wizard not cleared")
	}
	if got := env.ad.lastTo(admin); got != env.e.tx.Format("chat_added", "name", "Movies") {
		t.Fatalf("confirmation = %q", got)
	}
}

func TestChatWizardRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	const admin = 300
	_ = env.st.AddAdmin(context.Background(), admin)

	env.handle(t, callback(admin, ActionChatAdd.Data()))
	env.handle(t, privateMsg(admin, 1, "Movies"))
	env.handle(t, privateMsg(admin, 2, "not a link"))
	if env.e.pending.Get(admin).Kind != PendingChatLink {
		t.Fatal("invalid link must keep the link step")
	}
	env.handle(t, privateMsg(admin, 3, "t.me/movies"))
	env.handle(t, privateMsg(admin, 4, "plain text, not forwarded"))
	if env.e.pending.Get(admin).Kind != PendingNone {
		t.Fatal("forward step must always clear")
	}
	if got := env.ad.lastTo(admin); got != env.e.tx.Get("chat_forward_invalid") {
		t.Fatalf("reply = %q", got)
	}
	chats, _ := env.st.ListChats(context.Background())
	if len(chats) != 0 {
		t.Fatalf("chats = %+v", chats)
	}
}

func TestInvalidAdminIDKeepsState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const owner = 100
	_ = env.st.SetOwner(ctx, owner)

	env.handle(t, callback(owner, ActionAdminAdd.Data()))
	env.handle(t, privateMsg(owner, 1, "abc"))
	if env.e.pending.Get(owner).Kind != PendingAdminAdd {
		t.Fatal("invalid id cleared the step")
	}
	if admins, _ := env.st.ListAdmins(ctx); len(admins) != 0 {
		t.Fatalf("admins = %v", admins)
	}
	if got := env.ad.lastTo(owner); got != env.e.tx.Get("send_numeric_user_id") {
		t.Fatalf("reply = %q", got)
	}

	env.handle(t, privateMsg(owner, 2, "42"))
	if admins, _ := env.st.ListAdmins(ctx); !reflect.DeepEqual(admins, []int64{42}) {
		t.Fatalf("admins = %v", admins)
	}
	if env.e.pending.Get(owner).Kind != PendingNone {
		t.Fatal("step not cleared after success")
	}

	env.handle(t, callback(owner, ActionAdminRemove.Data()))
	env.handle(t, privateMsg(owner, 3, "42"))
	if admins, _ := env.st.ListAdmins(ctx); len(admins) != 0 {
		t.Fatalf("admins after remove = %v", admins)
	}
}

func TestNonOwnerCannotDriveOwnerSteps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_ = env.st.SetOwner(ctx, 100)
	const intruder = 200
	env.e.pending.Set(intruder, Pending{Kind: PendingAdminAdd})

	env.handle(t, privateMsg(intruder, 1, "42"))
	if got := env.ad.lastTo(intruder); got != env.e.tx.Get("only_owner_manage_admins") {
		t.Fatalf("reply = %q", got)
	}
	if env.e.pending.Get(intruder).Kind != PendingAdminAdd {
		t.Fatal("denied input must keep the state")
	}
	if admins, _ := env.st.ListAdmins(ctx); len(admins) != 0 {
		t.Fatalf("admins = %v", admins)
	}

	env.handle(t, privateMsg(intruder, 2, "/broadcast"))
	if got := env.ad.lastTo(intruder); got != env.e.tx.Get("notify_not_owner") {
		t.Fatalf("reply = %q", got)
	}
}

func TestUnauthorisedCallbacksAreNoops(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_ = env.st.SetOwner(ctx, 100)
	_ = env.st.SetChat(ctx, storage.ChatEntry{Name: "Movies", ChatID: 555, Link: "https://t.me/movies"})

	for _, data := range []string{"Movies", "admin_add", "chat_add", "main_menu", "bogus"} {
		env.handle(t, callback(999, data))
	}
	if len(env.ad.sent) != 0 || len(env.ad.edits) != 0 || len(env.ad.answers) != 0 {
		t.Fatalf("unexpected output: sent=%v edits=%v answers=%v", env.ad.sent, env.ad.edits, env.ad.answers)
	}
	if env.e.pending.Len() != 0 {
		t.Fatal("pending state created")
	}
	if chats, _ := env.st.ListChats(ctx); len(chats) != 1 {
		t.Fatalf("chats = %+v", chats)
	}
}

func TestAdminCallbacks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const admin = 300
	_ = env.st.SetOwner(ctx, 100)
	_ = env.st.AddAdmin(ctx, admin)
	_ = env.st.SetChat(ctx, storage.ChatEntry{Name: "Movies", ChatID: 555, Link: "https://t.me/movies"})

	env.handle(t, callback(admin, ActionAdminAdd.Data()))
	if env.e.pending.Get(admin).Kind != PendingNone {
		t.Fatal("admin armed an owner-only step")
	}
	if len(env.ad.answers) != 1 || env.ad.answers[0] != env.e.tx.Get("not_authorised") {
		t.Fatalf("answers = %v", env.ad.answers)
	}

	env.handle(t, callback(admin, "bogus"))
	if env.ad.answers[len(env.ad.answers)-1] != env.e.tx.Get("unknown_action") {
		t.Fatalf("answers = %v", env.ad.answers)
	}

	env.handle(t, callback(admin, "Movies"))
	if chats, _ := env.st.ListChats(ctx); len(chats) != 0 {
		t.Fatalf("chat not deleted: %+v", chats)
	}
	if got := env.ad.lastTo(admin); got != env.e.tx.Format("chat_removed", "name", "Movies") {
		t.Fatalf("reply = %q", got)
	}

	env.handle(t, callback(admin, ActionChatRemove.Data()))
	if got := env.ad.lastTo(admin); got != env.e.tx.Get("no_chats_to_remove") {
		t.Fatalf("reply = %q", got)
	}
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	const admin = 300
	_ = env.st.AddAdmin(context.Background(), admin)

	env.handle(t, callback(admin, ActionChatAdd.Data()))
	env.handle(t, privateMsg(admin, 1, "/cancel"))
	if env.e.pending.Len() != 0 {
		t.Fatal("cancel kept state")
	}
	if got := env.ad.lastTo(admin); got != env.e.tx.Get("cancelled") {
		t.Fatalf("reply = %q", got)
	}
	env.handle(t, privateMsg(admin, 2, "/cancel"))
	if got := env.ad.lastTo(admin); got != env.e.tx.Get("nothing_to_cancel") {
		t.Fatalf("reply = %q", got)
	}
}

func TestStartSavesUserAndGates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_ = env.st.SetChat(ctx, storage.ChatEntry{Name: "Movies", ChatID: -555, Link: "https://t.me/movies"})
	env.ad.status[-555] = kit.StatusLeft

	env.handle(t, privateMsg(7, 1, "/start"))
	if users, _ := env.st.ListUsers(ctx); !reflect.DeepEqual(users, []int64{7}) {
		t.Fatalf("users = %v", users)
	}
	if got := env.ad.lastTo(7); got != env.e.tx.Get("join_required") {
		t.Fatalf("reply = %q", got)
	}

	env.ad.status[-555] = kit.StatusMember
	env.handle(t, privateMsg(7, 2, "/start"))
	if got := env.ad.lastTo(7); got != env.e.tx.Get("start_greeting") {
		t.Fatalf("reply = %q", got)
	}
}

func TestArchiveCaptureAndSearch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const archive = -1001
	env.settings = Settings{ArchiveChatID: archive, RequireBotAdmin: true}

	post := func(id int, text string) {
		env.handle(t, router.NewRequest(kit.Update{
			Kind:    kit.UpdateMessage,
			Message: &kit.Message{ID: id, ChatID: archive, FromID: 5, Caption: text},
		}))
	}
	post(11, "Inception\nINC01")
	post(12, "Inception")
	post(13, "Tenet")

	msgs, _ := env.st.AllMessages(ctx)
	if len(msgs) != 3 || msgs[11] != "Inception\nINC01" {
		t.Fatalf("archive = %v", msgs)
	}

	env.ad.botStatus = kit.StatusMember
	post(14, "Dune")
	if msgs, _ := env.st.AllMessages(ctx); len(msgs) != 3 {
		t.Fatal("captured without bot admin rights")
	}

	env.handle(t, privateMsg(7, 1, "inception"))
	var got []int
	for _, c := range env.ad.copies {
		if c.to != 7 || c.from != archive {
			t.Fatalf("copy = %+v", c)
		}
		got = append(got, c.msgID)
	}
	if !reflect.DeepEqual(got, []int{11, 12}) {
		t.Fatalf("copied = %v", got)
	}

	env.handle(t, privateMsg(7, 2, "/find nothing"))
	if got := env.ad.lastTo(7); got != env.e.tx.Get("search_no_results") {
		t.Fatalf("reply = %q", got)
	}
	env.handle(t, privateMsg(7, 3, "/find"))
	if got := env.ad.lastTo(7); got != env.e.tx.Get("search_usage") {
		t.Fatalf("reply = %q", got)
	}
}

func TestGroupTextIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.handle(t, router.NewRequest(kit.Update{
		Kind:    kit.UpdateMessage,
		Message: &kit.Message{ID: 1, ChatID: -42, FromID: 7, Text: "inception"},
	}))
	if len(env.ad.sent) != 0 || env.ad.copyCount() != 0 {
		t.Fatal("group chatter triggered output")
	}
}

func TestAdminEditStoreFailureKeepsStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const owner = 100
	_ = env.st.SetOwner(ctx, owner)

	env.handle(t, callback(owner, ActionAdminAdd.Data()))
	env.fail.addAdmin = true
	err := env.e.Handle(ctx, privateMsg(owner, 1, "555"))
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("Handle err = %v, want store error", err)
	}
	if env.e.pending.Get(owner).Kind != PendingAdminAdd {
		t.Fatal("failed write must keep the admin step")
	}
	if got := env.ad.lastTo(owner); got != env.e.tx.Get("action_failed") {
		t.Fatalf("reply = %q", got)
	}

	env.fail.addAdmin = false
	env.handle(t, privateMsg(owner, 2, "555"))
	if ok, _ := env.st.IsAdmin(ctx, 555); !ok {
		t.Fatal("retry after recovery did not add the admin")
	}
}

func TestChatForwardStoreFailureClearsStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const admin = 300
	_ = env.st.AddAdmin(ctx, admin)

	env.handle(t, callback(admin, ActionChatAdd.Data()))
	env.handle(t, privateMsg(admin, 1, "Movies"))
	env.handle(t, privateMsg(admin, 2, "https://t.me/movies"))
	env.fail.setChat = true
	if err := env.e.Handle(ctx, forwardMsg(admin, 555)); !errors.Is(err, errStoreDown) {
		t.Fatalf("Handle err = %v, want store error", err)
	}
	if env.e.pending.Get(admin).Kind != PendingNone {
		t.Fatal("forward step must clear even when the write fails")
	}
	if chats, _ := env.st.ListChats(ctx); len(chats) != 0 {
		t.Fatalf("chats = %+v", chats)
	}
	if got := env.ad.lastTo(admin); got != env.e.tx.Get("action_failed") {
		t.Fatalf("reply = %q", got)
	}
}

func TestBroadcastListUsersFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const owner = 100
	_ = env.st.SetOwner(ctx, owner)
	_ = env.st.SaveUser(ctx, 1)
	env.fail.listUsers = true

	sum := env.e.bc.Run(ctx, Job{ID: "j1", SourceChatID: owner, SourceMessageID: 9, InitiatorID: owner})
	if !errors.Is(sum.Err, errStoreDown) {
		t.Fatalf("summary err = %v", sum.Err)
	}
	if env.ad.copyCount() != 0 {
		t.Fatal("nothing may be copied without a user list")
	}
	if got := env.ad.textsTo(owner); len(got) != 1 || got[0] != env.e.tx.Get("broadcast_failed") {
		t.Fatalf("owner got %v", got)
	}
}

func TestChatListFailureStaysSilent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const admin = 300
	_ = env.st.AddAdmin(ctx, admin)
	env.fail.listChats = true

	if err := env.e.Handle(ctx, privateMsg(7, 1, "/start")); !errors.Is(err, errStoreDown) {
		t.Fatalf("/start err = %v, want store error", err)
	}
	if got := env.ad.textsTo(7); len(got) != 0 {
		t.Fatalf("gate failure replied %v", got)
	}

	if err := env.e.Handle(ctx, callback(admin, ActionChatList.Data())); !errors.Is(err, errStoreDown) {
		t.Fatalf("callback err = %v, want store error", err)
	}
	if len(env.ad.sent) != 0 || len(env.ad.answers) != 0 || len(env.ad.edits) != 0 {
		t.Fatalf("callback failure produced output: sent=%v answers=%v", env.ad.sent, env.ad.answers)
	}
}

func TestChatListBoldHeader(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const admin = 300
	_ = env.st.AddAdmin(ctx, admin)
	_ = env.st.SetChat(ctx, storage.ChatEntry{Name: "Movies", ChatID: -555, Link: "https://t.me/movies"})

	env.handle(t, callback(admin, ActionChatList.Data()))
	got := env.ad.lastTo(admin)
	if !strings.HasPrefix(got, "<b>"+env.e.tx.Get("chat_list_header")+"</b>\n") {
		t.Fatalf("list = %q", got)
	}
	if !strings.Contains(got, "<code>-555</code>") {
		t.Fatalf("list = %q", got)
	}
}
