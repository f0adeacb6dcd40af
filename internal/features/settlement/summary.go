package settlement

import (
	"fmt"
	"strings"

	"serotonyl.ru/settlement-engine/internal/common"
)

// Run kinds
const (
	KindSettle     = "settle"
	KindReconcile  = "reconcile"
	KindStandalone = "standalone"
	KindCorrection = "correction"
)

// Summary reports one run. Deferred wagers are still pending and will be
// picked up by the next reconcile.
type Summary struct {
	Kind           string `json:"kind"`
	RoundID        int64  `json:"round_id,omitempty"`
	WagerID        int64  `json:"wager_id,omitempty"`
	RunID          string `json:"run_id"`
	Processed      int    `json:"processed"`
	Won            int    `json:"won"`
	Lost           int    `json:"lost"`
	AlreadySettled int    `json:"already_settled"`
	Deferred       int    `json:"deferred"`
	Malformed      int    `json:"malformed"`
	TotalPaid      int64  `json:"total_paid"`
	RoundSettled   bool   `json:"round_settled"`
}

func (s *Summary) add(r wagerResult) {
	s.Processed++
	switch r.status {
	case statusWon:
		s.Won++
		s.TotalPaid += r.paid
	case statusLost:
		s.Lost++
	case statusAlreadySettled:
		s.AlreadySettled++
	case statusDeferred:
		s.Deferred++
	}
	if r.malformed {
		s.Malformed++
	}
}

// String renders the summary for operator chats.
func (s Summary) String() string {
	var b strings.Builder
	switch {
	case s.RoundID != 0:
		fmt.Fprintf(&b, "%s round %d", s.Kind, s.RoundID)
	case s.WagerID != 0:
		fmt.Fprintf(&b, "%s wager %d", s.Kind, s.WagerID)
	default:
		b.WriteString(s.Kind)
	}
	fmt.Fprintf(&b, " (run %s)\n", s.RunID)
	fmt.Fprintf(&b, "processed: %d\nwon: %d\nlost: %d\nalready settled: %d\n", s.Processed, s.Won, s.Lost, s.AlreadySettled)
	if s.Deferred > 0 {
		fmt.Fprintf(&b, "deferred: %d\n", s.Deferred)
	}
	if s.Malformed > 0 {
		fmt.Fprintf(&b, "malformed: %d\n", s.Malformed)
	}
	fmt.Fprintf(&b, "paid: %s", common.FormatAmount(s.TotalPaid))
	if s.RoundSettled {
		b.WriteString("\nround settled")
	}
	return b.String()
}
