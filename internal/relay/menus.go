package relay

import (
	"sort"

	"relaybot/internal/storage"
	"relaybot/pkg/tgui"
)

func (e *Engine) menuRoot() *tgui.Inline {
	return tgui.NewInline().Column(
		tgui.Btn(e.tx.Get("btn_manage_admins"), ActionMenuAdmins.Data()),
		tgui.Btn(e.tx.Get("btn_manage_chats"), ActionMenuChats.Data()),
	)
}

func (e *Engine) menuAdmins() *tgui.Inline {
	return tgui.NewInline().Column(
		tgui.Btn(e.tx.Get("btn_add_admin"), ActionAdminAdd.Data()),
		tgui.Btn(e.tx.Get("btn_remove_admin"), ActionAdminRemove.Data()),
		tgui.Btn(e.tx.Get("btn_list_admins"), ActionAdminList.Data()),
		tgui.Btn(e.tx.Get("btn_back"), ActionMainMenu.Data()),
	)
}

// menuChats adds the owner-only rows (notify, back) when owner is true.
func (e *Engine) menuChats(owner bool) *tgui.Inline {
	kb := tgui.NewInline().Column(
		tgui.Btn(e.tx.Get("btn_add_chat"), ActionChatAdd.Data()),
		tgui.Btn(e.tx.Get("btn_remove_chat"), ActionChatRemove.Data()),
		tgui.Btn(e.tx.Get("btn_list_chats"), ActionChatList.Data()),
	)
	if owner {
		kb.Column(
			tgui.Btn(e.tx.Get("btn_notify"), ActionChatNotify.Data()),
			tgui.Btn(e.tx.Get("btn_back"), ActionMainMenu.Data()),
		)
	}
	return kb
}

// menuChatRemove offers one button per chat; the payload is the chat name.
func menuChatRemove(chats map[string]storage.ChatEntry) *tgui.Inline {
	kb := tgui.NewInline()
	for _, c := range sortedChats(chats) {
		kb.Row(tgui.Btn(c.Name, c.Name))
	}
	return kb
}

func (e *Engine) menuJoin(missing []storage.ChatEntry) *tgui.Inline {
	kb := tgui.NewInline()
	for _, c := range missing {
		kb.Row(tgui.URLBtn(e.tx.Format("btn_join", "name", c.Name), c.Link))
	}
	return kb
}

func sortedChats(chats map[string]storage.ChatEntry) []storage.ChatEntry {
	out := make([]storage.ChatEntry, 0, len(chats))
	for _, c := range chats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
