package relay

import (
	"context"
	"fmt"
	"strings"

	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
	"relaybot/pkg/tgui"
)

// capture stores a message posted in the archive chat, keyed by its id.
// A repeated id overwrites the stored text.
func (e *Engine) capture(ctx context.Context, msg *kit.Message, s Settings) error {
	body := msg.Body()
	if strings.TrimSpace(body) == "" {
		return nil
	}
	if s.RequireBotAdmin {
		status, err := e.ad.ChatMemberStatus(ctx, msg.ChatID, e.ad.BotID())
		if err != nil || (status != kit.StatusAdministrator && status != kit.StatusCreator) {
			e.log.Debug("archive skipped: bot is not an admin of the archive chat",
				logx.Int64("chat_id", msg.ChatID), logx.String("status", status), logx.Err(err))
			return nil
		}
	}
	if err := e.store.SaveMessage(ctx, msg.ID, body); err != nil {
		return fmt.Errorf("save message %d: %w", msg.ID, err)
	}
	e.log.Debug("message archived", logx.Int("message_id", msg.ID), logx.String("title", tgui.Preview(body, 40)))
	return nil
}
