package server

import (
	"github.com/npezzotti/go-studychat/internal/types"
)

// Notifier pushes best-effort notifications to online users. Nothing is
// stored or retried.
type Notifier struct {
	presence *PresenceRegistry
}

func NewNotifier(presence *PresenceRegistry) *Notifier {
	return &Notifier{presence: presence}
}

// Notify reports whether the notification was queued on the recipient's
// connection.
func (n *Notifier) Notify(recipientId string, summary types.Notification) bool {
	conn, ok := n.presence.Lookup(recipientId)
	if !ok {
		return false
	}
	return conn.queueMessage(notificationMessage(summary))
}
