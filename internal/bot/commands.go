package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/settlement-engine/internal/common"
	"serotonyl.ru/settlement-engine/internal/features/rounds"
	"serotonyl.ru/settlement-engine/internal/features/settlement"
)

const helpText = `operator commands:
/round <id> - show a round
/open <id>, /close <id> - move a round forward
/declare <id> <result> - declare the result and settle
/settle <id> - settle a resulted round
/reconcile <id> - settle what a previous run left pending
/wager <id> <result> - settle a standalone wager
/correct <id> <reason> - pay losses that win under the current rules`

// routeCommand returns the reply text, empty for unknown commands.
func (b *Bot) routeCommand(ctx context.Context, cmd string, args []string) string {
	switch cmd {
	case "start", "help":
		return helpText

	case "round":
		id, err := argID(args)
		if err != nil {
			return "usage: /round <id>"
		}
		r, err := b.rounds.Get(ctx, id)
		if err != nil {
			return errorText(err)
		}
		return roundText(r)

	case "open", "close":
		id, err := argID(args)
		if err != nil {
			return fmt.Sprintf("usage: /%s <id>", cmd)
		}
		step := b.rounds.Open
		if cmd == "close" {
			step = b.rounds.Close
		}
		r, err := step(ctx, id)
		if err != nil {
			return errorText(err)
		}
		return roundText(r)

	case "declare":
		id, err := argID(args)
		if err != nil || len(args) < 2 {
			return "usage: /declare <id> <result>"
		}
		r, err := b.rounds.DeclareResult(ctx, id, strings.Join(args[1:], " "))
		if err != nil {
			return errorText(err)
		}
		s, err := b.settler.SettleRound(ctx, id)
		if err != nil {
			return roundText(r) + "\n\nsettlement failed: " + errorText(err)
		}
		return s.String()

	case "settle", "reconcile":
		id, err := argID(args)
		if err != nil {
			return fmt.Sprintf("usage: /%s <id>", cmd)
		}
		run := b.settler.SettleRound
		if cmd == "reconcile" {
			run = b.settler.ReconcileRound
		}
		return summaryText(run(ctx, id))

	case "wager":
		id, err := argID(args)
		if err != nil || len(args) < 2 {
			return "usage: /wager <id> <result>"
		}
		return summaryText(b.settler.SettleStandalone(ctx, id, strings.Join(args[1:], " ")))

	case "correct":
		id, err := argID(args)
		if err != nil || len(args) < 2 {
			return "usage: /correct <id> <reason>"
		}
		return summaryText(b.settler.CorrectRound(ctx, id, strings.Join(args[1:], " ")))
	}
	return ""
}

func argID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, errors.New("missing id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad id %q", args[0])
	}
	return id, nil
}

func summaryText(s settlement.Summary, err error) string {
	if err != nil {
		return errorText(err)
	}
	return s.String()
}

func roundText(r *rounds.Round) string {
	var b strings.Builder
	fmt.Fprintf(&b, "round %d", r.ID)
	if r.Name != "" {
		fmt.Fprintf(&b, " %s", r.Name)
	}
	fmt.Fprintf(&b, "\ncategory: %s\nstate: %s", r.Category, r.State)
	if r.DeclaredResult != nil {
		fmt.Fprintf(&b, "\nresult: %s", *r.DeclaredResult)
	}
	return b.String()
}

// errorText keeps internal errors out of the chat.
func errorText(err error) string {
	switch {
	case errors.Is(err, common.ErrRoundNotFound),
		errors.Is(err, common.ErrWagerNotFound),
		errors.Is(err, common.ErrInvalidStateTransition),
		errors.Is(err, common.ErrResultAlreadyDeclared),
		errors.Is(err, common.ErrInvalidResult),
		errors.Is(err, common.ErrSettlementInProgress),
		errors.Is(err, common.ErrStandaloneOnly):
		return "error: " + err.Error()
	default:
		log.WithError(err).Error("operator command failed")
		return "internal error, see logs"
	}
}
