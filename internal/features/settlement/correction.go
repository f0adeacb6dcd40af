package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/settlement-engine/internal/common"
	"serotonyl.ru/settlement-engine/internal/features/ledger"
	"serotonyl.ru/settlement-engine/internal/features/odds"
	"serotonyl.ru/settlement-engine/internal/features/prediction"
	"serotonyl.ru/settlement-engine/internal/features/wagers"
)

// CorrectRound re-evaluates the losing wagers of a round and pays the ones
// that win under the current rules. The wager rows stay as they are: each
// correction is a settlement_correction audit row plus one wager_corrections
// row, and a wager can be corrected only once.
//
// In the summary Won counts corrected wagers, Lost the losses that still lose
// and AlreadySettled the wagers corrected by an earlier run.
func (e *Executor) CorrectRound(ctx context.Context, roundID int64, reason string) (Summary, error) {
	summary := Summary{Kind: KindCorrection, RoundID: roundID, RunID: e.newRunID()}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return summary, errors.New("correction reason is required")
	}

	round, err := e.rounds.Get(ctx, roundID)
	if err != nil {
		return summary, err
	}
	if err := settleable(round); err != nil {
		return summary, err
	}

	release, err := e.acquire(ctx, roundKey(roundID))
	if err != nil {
		return summary, err
	}
	defer release()

	losses, err := e.wagers.ListLossesByRound(ctx, roundID)
	if err != nil {
		return summary, fmt.Errorf("load losing wagers: %w", err)
	}

	for _, w := range losses {
		summary.add(e.correctOne(ctx, w, round.Category, round.Result(), reason, summary.RunID))
	}

	log.WithFields(log.Fields{
		"round_id":   roundID,
		"run_id":     summary.RunID,
		"reason":     reason,
		"checked":    summary.Processed,
		"corrected":  summary.Won,
		"skipped":    summary.AlreadySettled,
		"deferred":   summary.Deferred,
		"total_paid": summary.TotalPaid,
	}).Info("correction run finished")

	e.notify(ctx, summary)
	return summary, nil
}

func (e *Executor) correctOne(ctx context.Context, w *wagers.Wager, category prediction.Category, result, reason, runID string) wagerResult {
	logger := log.WithFields(log.Fields{
		"wager_id":  w.ID,
		"player_id": w.PlayerID,
		"run_id":    runID,
		"mode":      w.Mode,
	})

	if won, err := evaluate(w, category, result); err != nil || !won {
		return wagerResult{status: statusLost, malformed: err != nil}
	}

	wctx, cancel := context.WithTimeout(ctx, e.opts.WagerTimeout)
	defer cancel()

	resolution, err := e.odds.Resolve(wctx, w.Mode, odds.Player{ID: w.PlayerID, SubadminID: w.SubadminID})
	if err != nil {
		logger.WithError(err).Warn("odds lookup failed, correction deferred")
		return wagerResult{status: statusDeferred}
	}
	payout, err := odds.Payout(w.Stake, resolution.Effective)
	if err != nil {
		logger.WithError(err).Error("payout cannot be computed, correction deferred")
		return wagerResult{status: statusDeferred}
	}

	err = e.retry(wctx, func() error {
		return e.applyCorrection(wctx, w, payout, reason, runID)
	})
	switch {
	case err == nil:
		logger.WithField("payout", payout).Warn("losing wager corrected to a win")
		return wagerResult{status: statusWon, paid: payout}
	case errors.Is(err, common.ErrAlreadyCorrected):
		return wagerResult{status: statusAlreadySettled}
	default:
		logger.WithError(err).Warn("correction deferred")
		return wagerResult{status: statusDeferred}
	}
}

func (e *Executor) applyCorrection(ctx context.Context, w *wagers.Wager, payout int64, reason, runID string) error {
	unlock, err := e.players.lock(ctx, w.PlayerID)
	if err != nil {
		return err
	}
	defer unlock()

	return e.ledger.InTx(ctx, func(tx Tx) error {
		if _, err := tx.InsertCorrection(ctx, &ledger.Correction{
			WagerID: w.ID,
			RunID:   runID,
			Payout:  payout,
			Reason:  reason,
		}); err != nil {
			return err
		}

		locked, err := tx.LockWager(ctx, w.ID)
		if err != nil {
			return err
		}
		if locked.Outcome != wagers.OutcomeLoss {
			return fmt.Errorf("wager %d is %s, only losses can be corrected", w.ID, locked.Outcome)
		}
		if err := tx.EnsureBalance(ctx, w.PlayerID); err != nil {
			return err
		}
		if _, err := tx.BalanceForUpdate(ctx, w.PlayerID); err != nil {
			return err
		}
		after, err := tx.ApplyDelta(ctx, w.PlayerID, payout)
		if err != nil {
			return err
		}

		wagerID := w.ID
		_, err = tx.AppendTransaction(ctx, &ledger.Transaction{
			PlayerID:        w.PlayerID,
			WagerID:         w.ID,
			Delta:           payout,
			BalanceAfter:    after,
			Type:            ledger.TxTypeSettlementCorrection,
			RunID:           runID,
			CorrectsWagerID: &wagerID,
			Description:     fmt.Sprintf("correction: %s", reason),
		})
		return err
	})
}
