package relay

import "sync"

// PendingKind is the wizard step a user is in.
type PendingKind int

const (
	PendingNone PendingKind = iota
	PendingBroadcast
	PendingAdminAdd
	PendingAdminRemove
	PendingChatName
	PendingChatLink
	PendingChatForward
)

func (k PendingKind) String() string {
	switch k {
	case PendingBroadcast:
		return "broadcast"
	case PendingAdminAdd:
		return "admin_add"
	case PendingAdminRemove:
		return "admin_remove"
	case PendingChatName:
		return "chat_add_name"
	case PendingChatLink:
		return "chat_add_link"
	case PendingChatForward:
		return "chat_add_forward"
	default:
		return "none"
	}
}

// Pending is the per-user wizard state. ChatName and ChatLink carry the
// values captured by earlier chat wizard steps.
type Pending struct {
	Kind     PendingKind
	ChatName string
	ChatLink string
}

func (p Pending) IsChatWizard() bool {
	return p.Kind == PendingChatName || p.Kind == PendingChatLink || p.Kind == PendingChatForward
}

// IsOwnerWizard covers the owner-only steps: broadcast and admin edits.
func (p Pending) IsOwnerWizard() bool {
	return p.Kind == PendingBroadcast || p.Kind == PendingAdminAdd || p.Kind == PendingAdminRemove
}

// PendingTable holds at most one Pending per user. Entries live until cleared.
type PendingTable struct {
	mu sync.Mutex
	m  map[int64]Pending
}

func NewPendingTable() *PendingTable {
	return &PendingTable{m: map[int64]Pending{}}
}

func (t *PendingTable) Get(userID int64) Pending {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.m[userID]
}

// Set replaces the user's state; a PendingNone value clears it.
func (t *PendingTable) Set(userID int64, p Pending) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.Kind == PendingNone {
		delete(t.m, userID)
		return
	}
	t.m[userID] = p
}

// Clear removes the user's state and returns what was there.
func (t *PendingTable) Clear(userID int64) (Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.m[userID]
	delete(t.m, userID)
	return p, ok
}

func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}
