package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"relaybot/internal/storage"
	"relaybot/internal/transport/telegram/router"
	logx "relaybot/pkg/logx"
)

// chatWizardStep advances chat_add_name -> chat_add_link -> chat_add_forward.
func (e *Engine) chatWizardStep(ctx context.Context, req *router.Request, p Pending) error {
	msg := req.Message()
	switch p.Kind {
	case PendingChatName:
		name, err := ValidateChatName(msg.Text)
		if err != nil {
			return e.reply(ctx, req, e.tx.Get("chat_name_invalid"), nil)
		}
		e.pending.Set(req.FromID, Pending{Kind: PendingChatLink, ChatName: name})
		return e.reply(ctx, req, e.tx.Format("chat_link_prompt", "name", name), nil)

	case PendingChatLink:
		link, err := NormalizeLink(msg.Text)
		if err != nil {
			return e.reply(ctx, req, e.tx.Get("chat_link_invalid"), nil)
		}
		e.pending.Set(req.FromID, Pending{Kind: PendingChatForward, ChatName: p.ChatName, ChatLink: link})
		return e.reply(ctx, req, e.tx.Format("chat_forward_prompt", "name", p.ChatName), nil)

	case PendingChatForward:
		// The forward step ends the wizard whatever happens.
		e.pending.Clear(req.FromID)
		if !msg.Forwarded || msg.ForwardChatID == 0 {
			return e.reply(ctx, req, e.tx.Get("chat_forward_invalid"), nil)
		}
		entry := storage.ChatEntry{Name: p.ChatName, ChatID: msg.ForwardChatID, Link: p.ChatLink}
		err := e.store.SetChat(ctx, entry)
		e.audit(ctx, req.FromID, "chat.add", entry.Name, err)
		if err != nil {
			_ = e.reply(ctx, req, e.tx.Get("action_failed"), nil)
			return fmt.Errorf("set chat: %w", err)
		}
		e.log.Info("chat added",
			logx.Int64("user_id", req.FromID),
			logx.String("name", entry.Name),
			logx.Int64("chat_id", entry.ChatID),
		)
		return e.reply(ctx, req, e.tx.Format("chat_added", "name", entry.Name), nil)
	}
	return nil
}

// ownerWizardStep handles broadcast capture and admin edits. The caller has
// already checked that the sender is the owner.
func (e *Engine) ownerWizardStep(ctx context.Context, req *router.Request, p Pending) error {
	msg := req.Message()
	switch p.Kind {
	case PendingBroadcast:
		e.pending.Clear(req.FromID)
		err := e.reply(ctx, req, e.tx.Get("broadcast_started"), nil)
		id := e.bc.Spawn(Job{
			SourceChatID:    msg.ChatID,
			SourceMessageID: msg.ID,
			InitiatorID:     req.FromID,
		})
		e.log.Info("broadcast spawned", logx.String("job", id), logx.Int64("user_id", req.FromID))
		return err

	case PendingAdminAdd, PendingAdminRemove:
		id, err := ParseUserID(msg.Text)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				e.log.Debug("admin id rejected", logx.String("reason", verr.Reason))
			}
			return e.reply(ctx, req, e.tx.Get("send_numeric_user_id"), nil)
		}
		return e.editAdmin(ctx, req, p.Kind, id)
	}
	return nil
}

func (e *Engine) editAdmin(ctx context.Context, req *router.Request, kind PendingKind, id int64) error {
	action, key, op := "admin.add", "admin_added", e.store.AddAdmin
	if kind == PendingAdminRemove {
		action, key, op = "admin.remove", "admin_removed", e.store.RemoveAdmin
	}
	err := op(ctx, id)
	e.audit(ctx, req.FromID, action, strconv.FormatInt(id, 10), err)
	if err != nil {
		_ = e.reply(ctx, req, e.tx.Get("action_failed"), nil)
		return fmt.Errorf("%s: %w", action, err)
	}
	e.pending.Clear(req.FromID)
	e.log.Info("admin set changed", logx.String("action", action), logx.Int64("admin_id", id))
	return e.reply(ctx, req, e.tx.Format(key, "id", id), nil)
}
