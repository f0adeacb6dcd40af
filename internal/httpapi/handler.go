// Package httpapi is the operator HTTP surface of the settlement engine.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/settlement-engine/internal/common"
	"serotonyl.ru/settlement-engine/internal/features/ledger"
	"serotonyl.ru/settlement-engine/internal/features/odds"
	"serotonyl.ru/settlement-engine/internal/features/rounds"
	"serotonyl.ru/settlement-engine/internal/features/settlement"
)

type RoundService interface {
	Get(ctx context.Context, id int64) (*rounds.Round, error)
	Open(ctx context.Context, id int64) (*rounds.Round, error)
	Close(ctx context.Context, id int64) (*rounds.Round, error)
	DeclareResult(ctx context.Context, id int64, result string) (*rounds.Round, error)
}

type Settler interface {
	SettleRound(ctx context.Context, roundID int64) (settlement.Summary, error)
	ReconcileRound(ctx context.Context, roundID int64) (settlement.Summary, error)
	SettleStandalone(ctx context.Context, wagerID int64, result string) (settlement.Summary, error)
	CorrectRound(ctx context.Context, roundID int64, reason string) (settlement.Summary, error)
}

type LedgerReader interface {
	GetBalance(ctx context.Context, playerID int64) (*ledger.Balance, error)
	ListByWager(ctx context.Context, wagerID int64) ([]*ledger.Transaction, error)
}

type OddsLister interface {
	ListActive(ctx context.Context) ([]*odds.Config, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the operator routes.
type Handler struct {
	Rounds  RoundService
	Settler Settler
	Ledger  LedgerReader
	Odds    OddsLister
	DB      Pinger
}

func (h *Handler) Register(r *gin.Engine, tokenHash string) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)

	api := r.Group("/api/v1", requireOperator(newTokenVerifier(tokenHash)))
	api.GET("/rounds/:id", h.getRound)
	api.POST("/rounds/:id/open", h.openRound)
	api.POST("/rounds/:id/close", h.closeRound)
	api.POST("/rounds/:id/result", h.declareResult)
	api.POST("/rounds/:id/settle", h.settleRound)
	api.POST("/rounds/:id/reconcile", h.reconcileRound)
	api.POST("/rounds/:id/corrections", h.correctRound)
	api.POST("/wagers/:id/settle", h.settleWager)
	api.GET("/wagers/:id/transactions", h.wagerTransactions)
	api.GET("/players/:id/balance", h.playerBalance)
	api.GET("/odds", h.listOdds)
}

type roundView struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Category       string     `json:"category"`
	State          string     `json:"state"`
	DeclaredResult *string    `json:"declared_result,omitempty"`
	Outcomes       []string   `json:"outcomes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	DeclaredAt     *time.Time `json:"declared_at,omitempty"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
}

func viewRound(r *rounds.Round) roundView {
	return roundView{
		ID:             r.ID,
		Name:           r.Name,
		Category:       string(r.Category),
		State:          r.State.String(),
		DeclaredResult: r.DeclaredResult,
		Outcomes:       r.Outcomes,
		CreatedAt:      r.CreatedAt,
		DeclaredAt:     r.DeclaredAt,
		SettledAt:      r.SettledAt,
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ready(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_missing"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *Handler) getRound(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	r, err := h.Rounds.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, viewRound(r))
}

func (h *Handler) roundTransition(c *gin.Context, fn func(context.Context, int64) (*rounds.Round, error)) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	r, err := fn(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, viewRound(r))
}

func (h *Handler) openRound(c *gin.Context)  { h.roundTransition(c, h.Rounds.Open) }
func (h *Handler) closeRound(c *gin.Context) { h.roundTransition(c, h.Rounds.Close) }

type declareRequest struct {
	Result string `json:"result"`
	// Settle runs settlement right after a successful declaration.
	Settle bool `json:"settle"`
}

type declareResponse struct {
	Round   roundView           `json:"round"`
	Summary *settlement.Summary `json:"summary,omitempty"`
}

func (h *Handler) declareResult(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req declareRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Result) == "" {
		fail(c, http.StatusBadRequest, "result required")
		return
	}

	r, err := h.Rounds.DeclareResult(c.Request.Context(), id, req.Result)
	if err != nil {
		failErr(c, err)
		return
	}
	resp := declareResponse{Round: viewRound(r)}
	if req.Settle {
		s, err := h.Settler.SettleRound(c.Request.Context(), id)
		if err != nil {
			failErr(c, err)
			return
		}
		resp.Summary = &s
		if s.RoundSettled {
			resp.Round.State = rounds.StateSettled.String()
		}
	}
	ok(c, resp)
}

func (h *Handler) runRound(c *gin.Context, fn func(context.Context, int64) (settlement.Summary, error)) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	s, err := fn(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, s)
}

func (h *Handler) settleRound(c *gin.Context)    { h.runRound(c, h.Settler.SettleRound) }
func (h *Handler) reconcileRound(c *gin.Context) { h.runRound(c, h.Settler.ReconcileRound) }

type correctionRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) correctRound(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req correctionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
		fail(c, http.StatusBadRequest, "reason required")
		return
	}
	s, err := h.Settler.CorrectRound(c.Request.Context(), id, req.Reason)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, s)
}

type standaloneRequest struct {
	Result string `json:"result"`
}

func (h *Handler) settleWager(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req standaloneRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Result) == "" {
		fail(c, http.StatusBadRequest, "result required")
		return
	}
	s, err := h.Settler.SettleStandalone(c.Request.Context(), id, req.Result)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, s)
}

type transactionView struct {
	ID              int64     `json:"id"`
	PlayerID        int64     `json:"player_id"`
	WagerID         int64     `json:"wager_id"`
	Delta           string    `json:"delta"`
	BalanceAfter    string    `json:"balance_after"`
	Type            string    `json:"type"`
	RunID           string    `json:"run_id"`
	CorrectsWagerID *int64    `json:"corrects_wager_id,omitempty"`
	Description     string    `json:"description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (h *Handler) wagerTransactions(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	txs, err := h.Ledger.ListByWager(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionView{
			ID:              t.ID,
			PlayerID:        t.PlayerID,
			WagerID:         t.WagerID,
			Delta:           common.FormatAmount(t.Delta),
			BalanceAfter:    common.FormatAmount(t.BalanceAfter),
			Type:            t.Type,
			RunID:           t.RunID,
			CorrectsWagerID: t.CorrectsWagerID,
			Description:     t.Description,
			CreatedAt:       t.CreatedAt,
		})
	}
	ok(c, out)
}

func (h *Handler) playerBalance(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	b, err := h.Ledger.GetBalance(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{
		"player_id": b.PlayerID,
		"balance":   common.FormatAmount(b.Balance),
		"total_won": common.FormatAmount(b.TotalWon),
	})
}

type oddsView struct {
	Mode       string `json:"mode"`
	SubadminID *int64 `json:"subadmin_id,omitempty"`
	Multiplier string `json:"multiplier"`
	Scaled     int64  `json:"scaled"`
}

func (h *Handler) listOdds(c *gin.Context) {
	cfgs, err := h.Odds.ListActive(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	out := make([]oddsView, 0, len(cfgs))
	for _, cfg := range cfgs {
		out = append(out, oddsView{
			Mode:       string(cfg.Mode),
			SubadminID: cfg.SubadminID,
			Multiplier: common.FormatMultiplier(cfg.Multiplier),
			Scaled:     cfg.Multiplier,
		})
	}
	ok(c, out)
}
