package relay

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"relaybot/internal/transport/telegram/router"
	logx "relaybot/pkg/logx"
)

// Match returns the ids of archive entries whose first or second line equals
// the query, ignoring case and surrounding space. Ids are ascending.
func Match(messages map[int]string, query string) []int {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var ids []int
	for id, text := range messages {
		lines := strings.SplitN(text, "\n", 3)
		for i := 0; i < len(lines) && i < 2; i++ {
			if strings.ToLower(strings.TrimSpace(lines[i])) == q {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Ints(ids)
	return ids
}

// passiveSearch treats plain private text as a search query.
func (e *Engine) passiveSearch(ctx context.Context, req *router.Request) error {
	query := strings.TrimSpace(req.Message().Text)
	if query == "" {
		return nil
	}
	ok, err := e.gateOrPrompt(ctx, req)
	if err != nil || !ok {
		return err
	}
	return e.search(ctx, req, query)
}

// search copies every matching archive message to the requester. A failed
// copy is skipped.
func (e *Engine) search(ctx context.Context, req *router.Request, query string) error {
	archive := e.settings().ArchiveChatID
	msgs, err := e.store.AllMessages(ctx)
	if err != nil {
		return fmt.Errorf("load archive: %w", err)
	}
	ids := Match(msgs, query)
	if len(ids) == 0 || archive == 0 {
		return e.reply(ctx, req, e.tx.Get("search_no_results"), nil)
	}
	for _, id := range ids {
		if err := e.ad.CopyMessage(ctx, req.Chat.ChatID, archive, id); err != nil {
			e.log.Debug("search result not delivered", logx.Int("message_id", id), logx.Err(err))
		}
	}
	return nil
}
