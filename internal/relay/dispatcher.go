package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"relaybot/internal/eventbus"
	"relaybot/internal/storage"
	"relaybot/internal/transport/telegram/router"
	logx "relaybot/pkg/logx"
	"relaybot/pkg/tgui"
)

// Handle routes one update. Roles and the owner id are re-read on every call.
//
// Order: archive capture, commands, chat-name delete shortcut, menu actions,
// then private free text (chat wizard, owner wizard, gated search).
func (e *Engine) Handle(ctx context.Context, req *router.Request) error {
	switch {
	case req.Message() != nil:
		return e.handleMessage(ctx, req)
	case req.Callback() != nil:
		return e.handleCallback(ctx, req)
	}
	return nil
}

func (e *Engine) handleMessage(ctx context.Context, req *router.Request) error {
	msg := req.Message()
	if s := e.settings(); s.ArchiveChatID != 0 && msg.ChatID == s.ArchiveChatID {
		return e.capture(ctx, msg, s)
	}
	if req.Command != "" {
		return e.handleCommand(ctx, req)
	}
	if !msg.IsPrivate {
		return nil
	}

	p := e.pending.Get(req.FromID)
	switch {
	case p.IsChatWizard():
		ok, err := e.roles.IsAuthorised(ctx, req.FromID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return e.chatWizardStep(ctx, req, p)
	case p.IsOwnerWizard():
		ok, err := e.roles.IsOwner(ctx, req.FromID)
		if err != nil {
			return err
		}
		if !ok {
			key := "only_owner_manage_admins"
			if p.Kind == PendingBroadcast {
				key = "notify_not_owner"
			}
			return e.reply(ctx, req, e.tx.Get(key), nil)
		}
		return e.ownerWizardStep(ctx, req, p)
	}
	return e.passiveSearch(ctx, req)
}

func (e *Engine) handleCommand(ctx context.Context, req *router.Request) error {
	switch req.Command {
	case "start":
		return e.cmdStart(ctx, req)
	case "setowner":
		return e.cmdSetOwner(ctx, req)
	case "admin", "manage":
		return e.cmdAdmin(ctx, req)
	case "broadcast", "notify":
		return e.startBroadcast(ctx, req)
	case "find":
		return e.cmdFind(ctx, req)
	case "help":
		return e.cmdHelp(ctx, req)
	case "cancel":
		if _, ok := e.pending.Clear(req.FromID); ok {
			return e.reply(ctx, req, e.tx.Get("cancelled"), nil)
		}
		return e.reply(ctx, req, e.tx.Get("nothing_to_cancel"), nil)
	}
	return nil
}

func (e *Engine) cmdStart(ctx context.Context, req *router.Request) error {
	if err := e.store.SaveUser(ctx, req.FromID); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	ok, err := e.gateOrPrompt(ctx, req)
	if err != nil || !ok {
		return err
	}
	return e.reply(ctx, req, e.tx.Get("start_greeting"), nil)
}

func (e *Engine) cmdSetOwner(ctx context.Context, req *router.Request) error {
	err := e.roles.ClaimOwner(ctx, req.FromID)
	switch {
	case errors.Is(err, ErrOwnershipConflict):
		return e.reply(ctx, req, e.tx.Get("owner_already_set"), nil)
	case err != nil:
		return err
	}
	e.log.Info("owner set", logx.Int64("user_id", req.FromID))
	e.audit(ctx, req.FromID, "owner.claim", strconv.FormatInt(req.FromID, 10), nil)
	if e.bus != nil {
		e.bus.Publish(eventbus.Event{Type: eventbus.OwnerClaimed, Data: req.FromID})
	}
	return e.reply(ctx, req, e.tx.Get("owner_set_success"), nil)
}

func (e *Engine) cmdAdmin(ctx context.Context, req *router.Request) error {
	role, err := e.roles.Resolve(ctx, req.FromID)
	if err != nil {
		return err
	}
	switch role {
	case RoleOwner:
		return e.reply(ctx, req, e.tx.Get("admin_manage_prompt"), e.menuRoot())
	case RoleAdmin:
		return e.reply(ctx, req, e.tx.Get("chat_manage_prompt"), e.menuChats(false))
	}
	return nil
}

// startBroadcast arms the broadcast step: the owner's next message is the broadcast.
func (e *Engine) startBroadcast(ctx context.Context, req *router.Request) error {
	ok, err := e.roles.IsOwner(ctx, req.FromID)
	if err != nil {
		return err
	}
	if !ok {
		return e.reply(ctx, req, e.tx.Get("notify_not_owner"), nil)
	}
	e.pending.Set(req.FromID, Pending{Kind: PendingBroadcast})
	return e.reply(ctx, req, e.tx.Get("broadcast_prompt"), nil)
}

func (e *Engine) cmdFind(ctx context.Context, req *router.Request) error {
	if req.ArgText == "" {
		return e.reply(ctx, req, e.tx.Get("search_usage"), nil)
	}
	ok, err := e.gateOrPrompt(ctx, req)
	if err != nil || !ok {
		return err
	}
	return e.search(ctx, req, req.ArgText)
}

func (e *Engine) cmdHelp(ctx context.Context, req *router.Request) error {
	lines := []string{e.tx.Get("help_header")}
	for _, c := range e.Commands() {
		if c.Hidden {
			continue
		}
		lines = append(lines, "/"+c.Name+" - "+c.Description)
	}
	return e.reply(ctx, req, strings.Join(lines, "\n"), nil)
}

// gateOrPrompt reports whether the user passed the membership gate and sends
// the join prompt when not.
func (e *Engine) gateOrPrompt(ctx context.Context, req *router.Request) (bool, error) {
	res, err := e.gate.Check(ctx, req.FromID)
	if err != nil {
		return false, err
	}
	if res.Satisfied() {
		return true, nil
	}
	return false, e.reply(ctx, req, e.tx.Get("join_required"), e.menuJoin(res.Missing))
}

func (e *Engine) handleCallback(ctx context.Context, req *router.Request) error {
	cb := req.Callback()
	role, err := e.roles.Resolve(ctx, req.FromID)
	if err != nil {
		return err
	}
	if role < RoleAdmin {
		return nil
	}
	owner := role == RoleOwner

	chats, err := e.store.ListChats(ctx)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}
	if _, ok := chats[cb.Data]; ok {
		return e.deleteChat(ctx, req, cb.Data)
	}

	action := ParseAction(cb.Data)
	switch action {
	case ActionMenuChats:
		return e.show(ctx, req, e.tx.Get("chat_management"), e.menuChats(owner))
	case ActionChatAdd:
		e.pending.Set(req.FromID, Pending{Kind: PendingChatName})
		return e.reply(ctx, req, e.tx.Get("chat_name_prompt"), nil)
	case ActionChatRemove:
		if len(chats) == 0 {
			return e.reply(ctx, req, e.tx.Get("no_chats_to_remove"), nil)
		}
		return e.reply(ctx, req, e.tx.Get("select_chat_to_remove"), menuChatRemove(chats))
	case ActionChatList:
		return e.sendChatList(ctx, req, chats)
	case ActionUnknown:
		return e.ad.AnswerCallback(ctx, cb.ID, e.tx.Get("unknown_action"))
	}

	// owner-only actions
	if !owner {
		return e.ad.AnswerCallback(ctx, cb.ID, e.tx.Get("not_authorised"))
	}
	switch action {
	case ActionMainMenu:
		return e.show(ctx, req, e.tx.Get("menu_management"), e.menuRoot())
	case ActionMenuAdmins:
		return e.show(ctx, req, e.tx.Get("admin_management"), e.menuAdmins())
	case ActionChatNotify:
		return e.startBroadcast(ctx, req)
	case ActionAdminAdd:
		e.pending.Set(req.FromID, Pending{Kind: PendingAdminAdd})
		return e.show(ctx, req, e.tx.Format("send_user_id_prompt", "action", "add"), nil)
	case ActionAdminRemove:
		e.pending.Set(req.FromID, Pending{Kind: PendingAdminRemove})
		return e.show(ctx, req, e.tx.Format("send_user_id_prompt", "action", "remove"), nil)
	case ActionAdminList:
		return e.showAdmins(ctx, req)
	}
	return nil
}

func (e *Engine) deleteChat(ctx context.Context, req *router.Request, name string) error {
	err := e.store.DeleteChat(ctx, name)
	e.audit(ctx, req.FromID, "chat.remove", name, err)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return e.show(ctx, req, e.tx.Format("chat_not_found", "name", name), nil)
	case err != nil:
		_ = e.reply(ctx, req, e.tx.Get("action_failed"), nil)
		return fmt.Errorf("delete chat: %w", err)
	}
	return e.show(ctx, req, e.tx.Format("chat_removed", "name", name), nil)
}

func (e *Engine) sendChatList(ctx context.Context, req *router.Request, chats map[string]storage.ChatEntry) error {
	if len(chats) == 0 {
		return e.reply(ctx, req, e.tx.Get("chat_list_empty"), nil)
	}
	parts := []tgui.H{tgui.B(e.tx.Get("chat_list_header"))}
	for _, c := range sortedChats(chats) {
		parts = append(parts, tgui.JoinH(" ", "•", tgui.Link(c.Name, c.Link), tgui.Code(strconv.FormatInt(c.ChatID, 10))))
	}
	return e.sendHTML(ctx, req.Chat, tgui.JoinH("\n", parts...))
}

func (e *Engine) showAdmins(ctx context.Context, req *router.Request) error {
	owner, _, err := e.roles.OwnerID(ctx)
	if err != nil {
		return err
	}
	admins, err := e.store.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	list := e.tx.Get("admins_none")
	if len(admins) > 0 {
		ids := make([]string, 0, len(admins))
		for _, a := range admins {
			ids = append(ids, strconv.FormatInt(a, 10))
		}
		list = strings.Join(ids, ", ")
	}
	return e.show(ctx, req, e.tx.Format("current_admins", "owner_id", owner, "admins", list), e.menuAdmins())
}
