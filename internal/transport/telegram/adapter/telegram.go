package adapter

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "relaybot/internal/runtime/supervisor"
	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	out     atomic.Value // stores (chan<- kit.Update)
	runMu   sync.Mutex
	running bool

	// sup owns the poll loop and the drop reporter; created on Start, cancelled on Stop.
	sup *rtsup.Supervisor

	// droppedUpdates counts updates dropped because the dispatcher was slower than polling.
	droppedUpdates uint64

	menuMu   sync.Mutex
	menuHash uint64
}

var _ kit.Adapter = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

// Supervisor returns the adapter's internal supervisor (nil if not started).
func (a *Adapter) Supervisor() *rtsup.Supervisor {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.sup
}

func (a *Adapter) BotID() int64 {
	if a.bot == nil || a.bot.Me == nil {
		return 0
	}
	return a.bot.Me.ID
}

// messageEvents are the message kinds relayed to the engine. Anything but text
// may still be archived, broadcast, or forwarded into the add-chat wizard.
var messageEvents = []string{
	tele.OnText,
	tele.OnPhoto, tele.OnVideo, tele.OnDocument, tele.OnAnimation,
	tele.OnAudio, tele.OnVoice, tele.OnVideoNote, tele.OnSticker,
	tele.OnLocation,
}

func (a *Adapter) registerHandlers() {
	onMessage := func(c tele.Context) error {
		if m := c.Message(); m != nil && m.Sender != nil && m.Chat != nil {
			a.sendUpdate(kit.Update{Kind: kit.UpdateMessage, Message: convertMessage(m)})
		}
		return nil
	}
	for _, ev := range messageEvents {
		a.bot.Handle(ev, onMessage)
	}

	a.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		m := c.Message()
		if cb == nil || m == nil || cb.Sender == nil {
			return nil
		}
		a.sendUpdate(kit.Update{
			Kind: kit.UpdateCallback,
			Callback: &kit.Callback{
				ID:        cb.ID,
				ChatID:    m.Chat.ID,
				ThreadID:  m.ThreadID,
				FromID:    cb.Sender.ID,
				MessageID: m.ID,
				Data:      cb.Data,
			},
		})
		return nil
	})
}

func convertMessage(m *tele.Message) *kit.Message {
	out := &kit.Message{
		ID:           m.ID,
		ChatID:       m.Chat.ID,
		ThreadID:     m.ThreadID,
		FromID:       m.Sender.ID,
		FromUsername: m.Sender.Username,
		Text:         m.Text,
		Caption:      m.Caption,
		IsPrivate:    m.Chat.Type == tele.ChatPrivate,
		HasMedia:     hasMedia(m),
	}
	if o := m.Origin; o != nil {
		out.Forwarded = true
		switch {
		case o.Chat != nil:
			out.ForwardChatID = o.Chat.ID
		case o.SenderChat != nil:
			out.ForwardChatID = o.SenderChat.ID
		}
	}
	return out
}

func hasMedia(m *tele.Message) bool {
	return m.Photo != nil || m.Video != nil || m.Document != nil || m.Animation != nil ||
		m.Audio != nil || m.Voice != nil || m.VideoNote != nil || m.Sticker != nil
}

func (a *Adapter) sendUpdate(up kit.Update) {
	out, _ := a.out.Load().(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "telegram.adapter"))),
		// adapter errors should not take down the whole app
		rtsup.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	sup.Go0("updates.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		report := func() {
			if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
				a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", cap(out)))
			}
		}
		for {
			select {
			case <-c.Done():
				report()
				return
			case <-ticker.C:
				report()
			}
		}
	})

	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})

	// telebot's Start() blocks until Stop(); restart it if it returns on its own.
	sup.GoRestart0("telebot.poll", func(c context.Context) {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithStopOnCleanExit(false),
	)
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning || sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.Uint64("dropped_updates_pending", atomic.LoadUint64(&a.droppedUpdates)))
	sup.Cancel()
	go a.bot.Stop()

	// Keep shutdown snappy even if getUpdates long-poll is still waiting.
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sup.Wait(wctx); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		a.log.Warn("telegram stop error", logx.Err(err))
	}
	return nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		sendOpt := &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		}
		// markup goes on the first chunk only
		if i == 0 {
			if rm, ok := opt.ReplyMarkupAdapter.(*tele.ReplyMarkup); ok {
				sendOpt.ReplyMarkup = rm
			}
		}
		msg, err := a.bot.Send(chat, chunk, sendOpt)
		if err != nil {
			return first, classifyError(err)
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)

	m := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	sendOpt := &tele.SendOptions{ParseMode: opt.ParseMode, DisableWebPagePreview: opt.DisablePreview}
	if rm, ok := opt.ReplyMarkupAdapter.(*tele.ReplyMarkup); ok {
		sendOpt.ReplyMarkup = rm
	}
	if _, err := a.bot.Edit(m, chunks[0], sendOpt); err != nil {
		return classifyError(err)
	}
	// overflow goes out as new messages
	for _, chunk := range chunks[1:] {
		if _, err := a.SendText(ctx, kit.ChatTarget{ChatID: ref.ChatID, ThreadID: ref.ThreadID}, chunk, &kit.SendOptions{ParseMode: opt.ParseMode, DisablePreview: opt.DisablePreview}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classifyError(a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text}))
}

func (a *Adapter) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: fromChatID}
	_, err := a.bot.Copy(tele.ChatID(toChatID), src)
	return classifyError(err)
}

func (a *Adapter) ChatMemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	member, err := a.bot.ChatMemberOf(tele.ChatID(chatID), tele.ChatID(userID))
	if err != nil {
		return "", classifyError(err)
	}
	status := string(member.Role)
	// restricted users may still be members of the chat
	if status == kit.StatusRestricted && member.Member {
		status = kit.StatusMember
	}
	return status, nil
}
