// Package bot is the Telegram operator console: admins drive the round
// lifecycle and settlement runs with chat commands, and finished runs are
// reported to the operator chat.
package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/settlement-engine/internal/bot/filters"
	"serotonyl.ru/settlement-engine/internal/bot/middleware"
	"serotonyl.ru/settlement-engine/internal/features/rounds"
	"serotonyl.ru/settlement-engine/internal/features/settlement"
)

// Sender delivers a text message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

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

type telegramSender struct {
	api *telego.Bot
}

// NewTelegramSender wraps a telego bot as a Sender.
func NewTelegramSender(api *telego.Bot) Sender {
	return &telegramSender{api: api}
}

func (s *telegramSender) Send(ctx context.Context, chatID int64, text string) error {
	_, err := s.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	return err
}

// Bot routes operator commands to the round service and the settlement executor.
type Bot struct {
	api    *telego.Bot
	sender Sender

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	rounds  RoundService
	settler Settler
	parser  *CommandParser

	pollTimeout int
	// caps concurrently handled updates
	inflight chan struct{}
}

// Options tune polling and throttling.
type Options struct {
	PollTimeoutSeconds int
	MaxInflight        int
}

func New(
	api *telego.Bot,
	chatFilter *filters.ChatFilter,
	rateLimiter *middleware.RateLimiter,
	roundService RoundService,
	settler Settler,
	opts Options,
) *Bot {
	if opts.MaxInflight <= 0 {
		opts.MaxInflight = 8
	}
	return &Bot{
		api:         api,
		sender:      NewTelegramSender(api),
		chatFilter:  chatFilter,
		rateLimiter: rateLimiter,
		rounds:      roundService,
		settler:     settler,
		parser:      NewCommandParser(),
		pollTimeout: opts.PollTimeoutSeconds,
		inflight:    make(chan struct{}, opts.MaxInflight),
	}
}

// Start long-polls Telegram until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{Timeout: b.pollTimeout})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.pollTimeout,
	}).Info("operator bot is polling")

	for {
		select {
		case <-ctx.Done():
			log.Info("operator bot stopping")
			return nil
		case update, ok := <-updates:
			if !ok {
				log.Info("update channel closed, operator bot stopped")
				return nil
			}
			b.inflight <- struct{}{}
			go func(upd telego.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic(middleware.UpdateFields(update))

	message := update.Message
	if message == nil || message.Text == "" {
		return
	}
	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(message) {
		return
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}
	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	log.WithFields(log.Fields{
		"cmd":     cmd,
		"args":    args,
		"user_id": message.From.ID,
	}).Info("operator command")

	reply := b.routeCommand(ctx, cmd, args)
	if reply == "" {
		return
	}
	b.sendMessage(ctx, message.Chat.ID, reply)
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	if err := b.sender.Send(ctx, chatID, text); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("send message failed")
	}
}

// CommandParser splits "/cmd arg1 arg2" and "!cmd ..." into command and args.
type CommandParser struct {
	validPrefixes []string
}

func NewCommandParser() *CommandParser {
	return &CommandParser{validPrefixes: []string{"/", "!"}}
}

// ParseCommand drops a "@botname" suffix from the command word.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command, _, _ := strings.Cut(strings.ToLower(parts[0]), "@")
	if command == "" {
		return "", nil, false
	}
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return command, args, true
}
