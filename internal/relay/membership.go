package relay

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"relaybot/internal/storage"
	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

// MemberLookup reports a user's status in a chat.
type MemberLookup interface {
	ChatMemberStatus(ctx context.Context, chatID, userID int64) (string, error)
}

// GateResult lists the configured chats the user has not joined, sorted by name.
type GateResult struct {
	Missing []storage.ChatEntry
}

func (g GateResult) Satisfied() bool { return len(g.Missing) == 0 }

// Gate checks that a user is a member of every configured chat.
type Gate struct {
	store   storage.Store
	members MemberLookup
	log     logx.Logger
}

func NewGate(st storage.Store, members MemberLookup, log logx.Logger) *Gate {
	return &Gate{store: st, members: members, log: log}
}

// Check queries every chat concurrently. A failed lookup counts as not joined.
// The error is non-nil only when the chat list cannot be read.
func (g *Gate) Check(ctx context.Context, userID int64) (GateResult, error) {
	chats, err := g.store.ListChats(ctx)
	if err != nil {
		return GateResult{}, fmt.Errorf("list chats: %w", err)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		missing []storage.ChatEntry
	)
	for _, c := range chats {
		wg.Add(1)
		go func(c storage.ChatEntry) {
			defer wg.Done()
			status, err := g.members.ChatMemberStatus(ctx, c.ChatID, userID)
			if err != nil {
				g.log.Debug("membership lookup failed", logx.String("chat", c.Name), logx.Int64("chat_id", c.ChatID), logx.Err(err))
			}
			if err == nil && isMemberStatus(status) {
				return
			}
			mu.Lock()
			missing = append(missing, c)
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	sort.Slice(missing, func(i, j int) bool { return missing[i].Name < missing[j].Name })
	return GateResult{Missing: missing}, nil
}

func isMemberStatus(s string) bool {
	switch s {
	case kit.StatusMember, kit.StatusAdministrator, kit.StatusCreator:
		return true
	}
	return false
}
