package relay

// Action is a decoded callback payload.
type Action int

const (
	ActionUnknown Action = iota
	ActionMainMenu
	ActionMenuAdmins
	ActionMenuChats
	ActionChatAdd
	ActionChatRemove
	ActionChatList
	ActionChatNotify
	ActionAdminAdd
	ActionAdminRemove
	ActionAdminList
)

var actionData = map[Action]string{
	ActionMainMenu:    "main_menu",
	ActionMenuAdmins:  "menu_admins",
	ActionMenuChats:   "menu_chats",
	ActionChatAdd:     "chat_add",
	ActionChatRemove:  "chat_remove",
	ActionChatList:    "chat_list",
	ActionChatNotify:  "chat_notify",
	ActionAdminAdd:    "admin_add",
	ActionAdminRemove: "admin_remove",
	ActionAdminList:   "admin_list",
}

var actionByData = func() map[string]Action {
	m := make(map[string]Action, len(actionData))
	for a, d := range actionData {
		m[d] = a
	}
	return m
}()

// ParseAction decodes callback data; anything unrecognised is ActionUnknown.
func ParseAction(data string) Action {
	return actionByData[data]
}

// Data is the callback payload for the action ("" for ActionUnknown).
func (a Action) Data() string { return actionData[a] }

func (a Action) String() string {
	if d, ok := actionData[a]; ok {
		return d
	}
	return "unknown"
}

// isReservedCallback reports whether s collides with an action payload.
// Chat names double as delete-button payloads, so they must not collide.
func isReservedCallback(s string) bool {
	_, ok := actionByData[s]
	return ok
}
