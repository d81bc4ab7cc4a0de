// Package relay is the privileged operation engine of the bot: roles,
// membership gating, the per-user management wizards, broadcast jobs and
// the archive search.
package relay

import (
	"context"

	"relaybot/internal/eventbus"
	"relaybot/internal/runtime/supervisor"
	"relaybot/internal/storage"
	"relaybot/internal/texts"
	kit "relaybot/internal/transport"
	"relaybot/internal/transport/telegram/router"
	logx "relaybot/pkg/logx"
	"relaybot/pkg/tgui"
)

// Settings are the hot-reloadable values the engine reads on every event.
type Settings struct {
	OwnerOverride   int64
	ArchiveChatID   int64
	RequireBotAdmin bool
}

type Deps struct {
	Adapter    kit.Adapter
	Store      storage.Store
	Texts      *texts.Catalog
	Bus        eventbus.Bus
	Supervisor *supervisor.Supervisor // runs broadcast jobs; nil uses bare goroutines
	Logger     logx.Logger
	Settings   func() Settings
}

type Engine struct {
	ad       kit.Adapter
	store    storage.Store
	tx       *texts.Catalog
	bus      eventbus.Bus
	log      logx.Logger
	settings func() Settings

	roles   *Roles
	gate    *Gate
	pending *PendingTable
	bc      *Broadcaster
}

func New(d Deps) *Engine {
	if d.Texts == nil {
		d.Texts = texts.Default()
	}
	if d.Settings == nil {
		d.Settings = func() Settings { return Settings{RequireBotAdmin: true} }
	}
	log := d.Logger.With(logx.String("comp", "relay"))
	e := &Engine{
		ad:       d.Adapter,
		store:    d.Store,
		tx:       d.Texts,
		bus:      d.Bus,
		log:      log,
		settings: d.Settings,
		pending:  NewPendingTable(),
	}
	e.roles = NewRoles(d.Store, func() int64 { return e.settings().OwnerOverride })
	e.gate = NewGate(d.Store, d.Adapter, log)
	e.bc = NewBroadcaster(d.Adapter, d.Store, e.roles, d.Texts, d.Bus, d.Supervisor, d.Logger)
	return e
}

func (e *Engine) Handler() router.Handler     { return e }
func (e *Engine) SetBroadcastRate(perSec int) { e.bc.SetRate(perSec) }

// Commands lists the bot commands for the Telegram menu and /help.
func (e *Engine) Commands() []router.Command {
	return []router.Command{
		{Name: "start", Description: e.tx.Get("cmd_start")},
		{Name: "find", Description: e.tx.Get("cmd_find")},
		{Name: "help", Description: e.tx.Get("cmd_help")},
		{Name: "cancel", Description: e.tx.Get("cmd_cancel")},
		{Name: "admin", Description: e.tx.Get("cmd_admin")},
		{Name: "broadcast", Description: e.tx.Get("cmd_broadcast")},
		{Name: "setowner", Description: e.tx.Get("cmd_setowner"), Hidden: true},
		{Name: "manage", Description: e.tx.Get("cmd_admin"), Hidden: true},
		{Name: "notify", Description: e.tx.Get("cmd_broadcast"), Hidden: true},
	}
}

func (e *Engine) send(ctx context.Context, to kit.ChatTarget, text string, kb *tgui.Inline) error {
	var opt *kit.SendOptions
	if kb != nil && kb.Len() > 0 {
		opt = &kit.SendOptions{ReplyMarkupAdapter: kb.Markup()}
	}
	_, err := e.ad.SendText(ctx, to, text, opt)
	return err
}

func (e *Engine) sendHTML(ctx context.Context, to kit.ChatTarget, html tgui.H) error {
	_, err := e.ad.SendText(ctx, to, html.String(), &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

// reply answers in the request's chat.
func (e *Engine) reply(ctx context.Context, req *router.Request, text string, kb *tgui.Inline) error {
	return e.send(ctx, req.Chat, text, kb)
}

// show replaces the menu message a callback came from, or sends a new message
// when the edit fails or the request is not a callback.
func (e *Engine) show(ctx context.Context, req *router.Request, text string, kb *tgui.Inline) error {
	if cb := req.Callback(); cb != nil && cb.MessageID != 0 {
		var opt *kit.SendOptions
		if kb != nil && kb.Len() > 0 {
			opt = &kit.SendOptions{ReplyMarkupAdapter: kb.Markup()}
		}
		ref := kit.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID}
		if err := e.ad.EditText(ctx, ref, text, opt); err == nil {
			return nil
		}
	}
	return e.reply(ctx, req, text, kb)
}

func (e *Engine) audit(ctx context.Context, actor int64, action, target string, err error) {
	entry := storage.AuditEntry{ActorID: actor, Action: action, Target: target}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.OK = 1
	}
	if aerr := e.store.AppendAudit(ctx, entry); aerr != nil {
		e.log.Warn("audit append failed", logx.String("action", action), logx.Err(aerr))
	}
}
