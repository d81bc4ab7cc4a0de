package relay

import (
	"net/url"
	"strconv"
	"strings"

	"relaybot/pkg/tgui"
)

// A chat name is also the callback payload of its delete button.
const maxChatNameLen = tgui.MaxCallbackDataLen

// ValidateChatName trims the name and rejects empty, oversized or reserved names.
func ValidateChatName(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", invalid("chat name", "empty")
	case len(s) > maxChatNameLen:
		return "", invalid("chat name", "longer than 64 bytes")
	case isReservedCallback(s):
		return "", invalid("chat name", "reserved keyword")
	}
	return s, nil
}

// NormalizeLink accepts http(s) and tg links. A bare t.me/... gets https://.
func NormalizeLink(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid("link", "empty")
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "t.me/") || strings.HasPrefix(lower, "telegram.me/") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", invalid("link", "malformed")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return "", invalid("link", "missing host")
		}
	case "tg":
		if u.Host == "" && u.Opaque == "" {
			return "", invalid("link", "missing target")
		}
	default:
		return "", invalid("link", "unsupported scheme")
	}
	return s, nil
}

// ParseUserID accepts a positive decimal Telegram user id.
func ParseUserID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, invalid("user id", "empty")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, invalid("user id", "not numeric")
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, invalid("user id", "out of range")
	}
	if id == 0 {
		return 0, invalid("user id", "must be positive")
	}
	return id, nil
}
