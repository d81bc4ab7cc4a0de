package router

import (
	"context"
	"strings"
	"time"
	"unicode"

	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

// Command describes a bot command for the Telegram menu and /help.
type Command struct {
	Name        string
	Description string
	// Hidden commands work but are not advertised.
	Hidden bool
}

// sanitizeTelegramCommand converts a name into a Telegram-safe bot command.
// Telegram command names are restricted to [a-z0-9_]{1,32}.
func sanitizeTelegramCommand(s string) string {
	s = strings.TrimSpace(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "/")))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == '-' || unicode.IsSpace(r):
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	return out
}

// MenuCommands converts visible commands into Telegram menu entries, keeping order.
func MenuCommands(cmds []Command) []kit.BotCommand {
	seen := map[string]bool{}
	out := make([]kit.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		name := sanitizeTelegramCommand(c.Name)
		if c.Hidden || name == "" || seen[name] {
			continue
		}
		seen[name] = true
		desc := strings.ReplaceAll(strings.TrimSpace(c.Description), "\n", " ")
		if desc == "" {
			desc = name
		}
		if len(desc) > 256 {
			desc = desc[:256]
		}
		out = append(out, kit.BotCommand{Command: name, Description: desc})
		if len(out) >= 100 {
			break
		}
	}
	return out
}

// PublishMenu pushes the command list to adapters that support a command menu.
func PublishMenu(ctx context.Context, log logx.Logger, adapter kit.Adapter, cmds []Command) {
	up, ok := adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := up.UpdateMenuCommands(ctx, MenuCommands(cmds)); err != nil {
		log.Warn("command menu update failed", logx.Err(err))
	}
}
