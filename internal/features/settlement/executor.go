package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/settlement-engine/internal/common"
	"serotonyl.ru/settlement-engine/internal/features/ledger"
	"serotonyl.ru/settlement-engine/internal/features/odds"
	"serotonyl.ru/settlement-engine/internal/features/prediction"
	"serotonyl.ru/settlement-engine/internal/features/rounds"
	"serotonyl.ru/settlement-engine/internal/features/wagers"
	"serotonyl.ru/settlement-engine/internal/lock"
)

// Options tune a settlement run.
type Options struct {
	Workers        int
	WagerTimeout   time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	// BinaryLabels are the outcomes a standalone binary result must match.
	BinaryLabels []string
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.WagerTimeout <= 0 {
		o.WagerTimeout = 5 * time.Second
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 4
	}
	if len(o.BinaryLabels) == 0 {
		o.BinaryLabels = []string{"heads", "tails"}
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 50 * time.Millisecond
	}
	return o
}

// Executor settles the wagers of resulted rounds and standalone games.
type Executor struct {
	rounds   RoundStore
	wagers   WagerStore
	ledger   Ledger
	odds     OddsResolver
	locker   RoundLocker
	notifier Notifier
	opts     Options
	players  *playerLocks
	newRunID func() string
}

// NewExecutor wires the executor. notifier may be nil.
func NewExecutor(rs RoundStore, ws WagerStore, l Ledger, o OddsResolver, locker RoundLocker, notifier Notifier, opts Options) *Executor {
	return &Executor{
		rounds:   rs,
		wagers:   ws,
		ledger:   l,
		odds:     o,
		locker:   locker,
		notifier: notifier,
		opts:     opts.withDefaults(),
		players:  newPlayerLocks(),
		newRunID: func() string { return uuid.NewString() },
	}
}

type wagerStatus int

const (
	statusWon wagerStatus = iota
	statusLost
	statusAlreadySettled
	statusDeferred
)

type wagerResult struct {
	status    wagerStatus
	paid      int64
	malformed bool
}

// errTerminal aborts a settlement tx when the wager was settled by someone else.
var errTerminal = errors.New("wager already terminal")

// SettleRound settles every pending wager of a resulted round.
func (e *Executor) SettleRound(ctx context.Context, roundID int64) (Summary, error) {
	return e.runRound(ctx, roundID, KindSettle)
}

// ReconcileRound re-runs settlement for a round. Wagers already terminal are
// skipped, so it only finishes what an earlier run left pending.
func (e *Executor) ReconcileRound(ctx context.Context, roundID int64) (Summary, error) {
	return e.runRound(ctx, roundID, KindReconcile)
}

func roundKey(id int64) string { return fmt.Sprintf("settlement:round:%d", id) }
func wagerKey(id int64) string { return fmt.Sprintf("settlement:wager:%d", id) }

func (e *Executor) acquire(ctx context.Context, key string) (func(), error) {
	release, err := e.locker.Acquire(ctx, key)
	if errors.Is(err, lock.ErrLocked) {
		return nil, fmt.Errorf("%w: %s", common.ErrSettlementInProgress, key)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return release, nil
}

func settleable(r *rounds.Round) error {
	if r.State != rounds.StateResulted && r.State != rounds.StateSettled {
		return fmt.Errorf("%w: round %d is %s, want resulted", common.ErrInvalidStateTransition, r.ID, r.State)
	}
	if r.DeclaredResult == nil {
		return fmt.Errorf("%w: round %d has no declared result", common.ErrInvalidStateTransition, r.ID)
	}
	return nil
}

func (e *Executor) runRound(ctx context.Context, roundID int64, kind string) (Summary, error) {
	summary := Summary{Kind: kind, RoundID: roundID, RunID: e.newRunID()}
	logger := log.WithFields(log.Fields{"round_id": roundID, "run_id": summary.RunID, "kind": kind})

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

	// the state may have moved while we waited for the lock
	if round, err = e.rounds.Get(ctx, roundID); err != nil {
		return summary, err
	}
	if err := settleable(round); err != nil {
		return summary, err
	}

	pending, err := e.wagers.ListPendingByRound(ctx, roundID)
	if err != nil {
		return summary, fmt.Errorf("load pending wagers: %w", err)
	}
	if round.State == rounds.StateSettled {
		if len(pending) == 0 {
			summary.RoundSettled = true
			logger.Debug("round already settled, nothing to do")
			return summary, nil
		}
		logger.WithField("pending", len(pending)).Warn("settled round still has pending wagers, repairing")
	}

	started := time.Now()
	e.settleAll(ctx, pending, round.Category, round.Result(), summary.RunID, &summary)

	left, err := e.wagers.CountPendingByRound(ctx, roundID)
	if err != nil {
		logger.WithError(err).Error("count pending wagers")
	} else if left == 0 {
		summary.RoundSettled = true
		if round.State == rounds.StateResulted {
			if _, err := e.rounds.MarkSettled(ctx, roundID); err != nil && !errors.Is(err, common.ErrInvalidStateTransition) {
				summary.RoundSettled = false
				logger.WithError(err).Error("mark round settled")
			}
		}
	}

	logger.WithFields(log.Fields{
		"processed":       summary.Processed,
		"won":             summary.Won,
		"lost":            summary.Lost,
		"already_settled": summary.AlreadySettled,
		"deferred":        summary.Deferred,
		"malformed":       summary.Malformed,
		"total_paid":      summary.TotalPaid,
		"round_settled":   summary.RoundSettled,
		"took":            time.Since(started).String(),
	}).Info("settlement run finished")

	e.notify(ctx, summary)
	return summary, nil
}

func (e *Executor) settleAll(ctx context.Context, list []*wagers.Wager, category prediction.Category, result, runID string, summary *Summary) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(e.opts.Workers)
	for _, w := range list {
		g.Go(func() error {
			r := e.settleOne(ctx, w, category, result, runID)
			mu.Lock()
			summary.add(r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// SettleStandalone settles one wager that is not attached to a round.
func (e *Executor) SettleStandalone(ctx context.Context, wagerID int64, result string) (Summary, error) {
	summary := Summary{Kind: KindStandalone, WagerID: wagerID, RunID: e.newRunID()}

	w, err := e.wagers.Get(ctx, wagerID)
	if err != nil {
		return summary, err
	}
	if w.RoundID != nil {
		return summary, fmt.Errorf("%w: wager %d belongs to round %d", common.ErrStandaloneOnly, wagerID, *w.RoundID)
	}
	normalized, err := e.standaloneResult(w.Mode.Category(), result)
	if err != nil {
		return summary, err
	}

	release, err := e.acquire(ctx, wagerKey(wagerID))
	if err != nil {
		return summary, err
	}
	defer release()

	summary.add(e.settleOne(ctx, w, w.Mode.Category(), normalized, summary.RunID))

	log.WithFields(log.Fields{
		"wager_id":   wagerID,
		"run_id":     summary.RunID,
		"won":        summary.Won,
		"deferred":   summary.Deferred,
		"total_paid": summary.TotalPaid,
	}).Info("standalone settlement finished")

	e.notify(ctx, summary)
	return summary, nil
}

func (e *Executor) standaloneResult(category prediction.Category, result string) (string, error) {
	normalized, err := prediction.NormalizeResult(category, result)
	if err != nil {
		return "", err
	}
	if category != prediction.CategoryBinary {
		return normalized, nil
	}
	for _, l := range e.opts.BinaryLabels {
		if want, _ := prediction.NormalizeResult(prediction.CategoryBinary, l); want == normalized {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not one of %v", common.ErrInvalidResult, result, e.opts.BinaryLabels)
}

func (e *Executor) notify(ctx context.Context, s Summary) {
	if e.notifier != nil {
		e.notifier.RunFinished(ctx, s)
	}
}

// settleOne evaluates, prices and writes one wager. It never returns an error:
// anything that stops the write leaves the wager pending and counts as deferred.
func (e *Executor) settleOne(ctx context.Context, w *wagers.Wager, category prediction.Category, result, runID string) (res wagerResult) {
	logger := log.WithFields(log.Fields{
		"wager_id":  w.ID,
		"player_id": w.PlayerID,
		"run_id":    runID,
		"mode":      w.Mode,
	})
	if w.RoundID != nil {
		logger = logger.WithField("round_id", *w.RoundID)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("panic while settling wager")
			res = wagerResult{status: statusDeferred}
		}
	}()

	if w.Outcome.Terminal() {
		return wagerResult{status: statusAlreadySettled}
	}

	wctx, cancel := context.WithTimeout(ctx, e.opts.WagerTimeout)
	defer cancel()

	won, err := evaluate(w, category, result)
	if err != nil {
		logger.WithError(err).WithFields(log.Fields{
			"prediction":   w.Prediction,
			"result":       result,
			"data_quality": true,
		}).Error("wager cannot be evaluated, settling as loss")
		res.malformed = true
		won = false
	}

	var payout int64
	if won {
		resolution, err := e.odds.Resolve(wctx, w.Mode, odds.Player{ID: w.PlayerID, SubadminID: w.SubadminID})
		if err != nil {
			logger.WithError(err).Warn("odds lookup failed, wager deferred")
			res.status = statusDeferred
			return res
		}
		payout, err = odds.Payout(w.Stake, resolution.Effective)
		if err != nil {
			logger.WithError(err).WithField("stake", w.Stake).Error("payout cannot be computed, wager deferred")
			res.status = statusDeferred
			return res
		}
	}

	err = e.retry(wctx, func() error {
		return e.apply(wctx, w, won, payout, runID)
	})
	switch {
	case err == nil && won:
		res.status, res.paid = statusWon, payout
	case err == nil:
		res.status = statusLost
	case errors.Is(err, errTerminal):
		res.status = statusAlreadySettled
	default:
		logger.WithError(err).Warn("wager deferred to the next reconcile")
		res.status = statusDeferred
	}
	return res
}

// evaluate refuses a wager whose mode belongs to another round category.
func evaluate(w *wagers.Wager, category prediction.Category, result string) (bool, error) {
	if got := w.Mode.Category(); got != category {
		return false, fmt.Errorf("%w: %s wager on a %s round", common.ErrMalformedPrediction, w.Mode, category)
	}
	return prediction.Evaluate(w.Mode, w.Prediction, result)
}

// apply is the atomic step: lock wager, lock balance, credit, mark, audit.
func (e *Executor) apply(ctx context.Context, w *wagers.Wager, won bool, payout int64, runID string) error {
	unlock, err := e.players.lock(ctx, w.PlayerID)
	if err != nil {
		return err
	}
	defer unlock()

	return e.ledger.InTx(ctx, func(tx Tx) error {
		locked, err := tx.LockWager(ctx, w.ID)
		if err != nil {
			return err
		}
		if locked.Outcome.Terminal() {
			return errTerminal
		}

		if err := tx.EnsureBalance(ctx, w.PlayerID); err != nil {
			return err
		}
		balance, err := tx.BalanceForUpdate(ctx, w.PlayerID)
		if err != nil {
			return err
		}
		if !won {
			return tx.MarkTerminal(ctx, w.ID, wagers.OutcomeLoss, 0, balance, runID)
		}

		after, err := tx.ApplyDelta(ctx, w.PlayerID, payout)
		if err != nil {
			return err
		}
		if err := tx.MarkTerminal(ctx, w.ID, wagers.OutcomeWin, payout, after, runID); err != nil {
			return err
		}
		_, err = tx.AppendTransaction(ctx, &ledger.Transaction{
			PlayerID:     w.PlayerID,
			WagerID:      w.ID,
			Delta:        payout,
			BalanceAfter: after,
			Type:         ledger.TxTypeSettlementWin,
			RunID:        runID,
			Description:  fmt.Sprintf("%s %s won %s", w.Mode, w.Prediction, common.FormatAmount(payout)),
		})
		return err
	})
}

// retry repeats fn on balance conflicts with exponential backoff.
func (e *Executor) retry(ctx context.Context, fn func() error) error {
	delay := e.opts.RetryBaseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, common.ErrBalanceConflict) || attempt >= e.opts.RetryAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w after %d attempts: %w", ctx.Err(), attempt, err)
		case <-time.After(delay):
		}
		delay *= 2
	}
}
