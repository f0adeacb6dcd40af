package bot

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/settlement-engine/internal/features/settlement"
)

// Notifier posts finished settlement runs to the operator chat.
// Reconcile runs that touched nothing are not posted.
type Notifier struct {
	sender Sender
	chatID int64
}

func NewNotifier(sender Sender, chatID int64) *Notifier {
	return &Notifier{sender: sender, chatID: chatID}
}

func (n *Notifier) RunFinished(ctx context.Context, s settlement.Summary) {
	if n == nil || n.chatID == 0 {
		return
	}
	if s.Kind == settlement.KindReconcile && s.Processed == 0 && !s.RoundSettled {
		return
	}
	if err := n.sender.Send(ctx, n.chatID, s.String()); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat_id": n.chatID,
			"run_id":  s.RunID,
		}).Warn("run notification not delivered")
	}
}
