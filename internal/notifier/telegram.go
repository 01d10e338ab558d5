// Package notifier posts a short daily summary to Telegram once the
// predictions are published.
package notifier

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/funmusicgames1/stockcast-backend/models"
)

// Telegram sends the daily digest to one chat. With no token configured
// every call is a logged no-op.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// Options holds options for creating a Telegram notifier.
type Options struct {
	Token  string
	ChatID int64
}

// New creates the notifier. A missing token or unreachable Telegram API is
// not an error: the pipeline must publish with or without notifications.
func New(opts Options) *Telegram {
	logger := log.With().Str("component", "notifier").Logger()

	n := &Telegram{chatID: opts.ChatID, logger: logger}
	if opts.Token == "" || opts.ChatID == 0 {
		logger.Warn().Msg("Telegram not configured, notifications disabled")
		return n
	}

	bot, err := tgbotapi.NewBotAPI(opts.Token)
	if err != nil {
		logger.Error().Err(err).Msg("Telegram init failed, notifications disabled")
		return n
	}
	n.bot = bot
	return n
}

// NotifyPredictions posts the top pick from each list of the given set.
func (n *Telegram) NotifyPredictions(set *models.PredictionSet) {
	if n.bot == nil || set == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Daily picks for %s\n\n", set.Date)
	if set.MarketSummary != "" {
		fmt.Fprintf(&sb, "%s\n\n", set.MarketSummary)
	}
	if len(set.Winners) > 0 {
		w := set.Winners[0]
		fmt.Fprintf(&sb, "📈 Top winner: %s (%s) %+.1f%%, %s\n", w.Ticker, w.Company, w.PredictedChangePct, w.Reason)
	}
	if len(set.Losers) > 0 {
		l := set.Losers[0]
		fmt.Fprintf(&sb, "📉 Top loser: %s (%s) %+.1f%%, %s\n", l.Ticker, l.Company, l.PredictedChangePct, l.Reason)
	}

	msg := tgbotapi.NewMessage(n.chatID, sb.String())
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error().Err(err).Msg("Failed to send Telegram message")
		return
	}
	n.logger.Info().Int64("chat_id", n.chatID).Msg("Notification sent")
}

// NotifyFailure reports a fatal pipeline run so the operator hears about it
// before the frontend goes stale.
func (n *Telegram) NotifyFailure(date string, err error) {
	if n.bot == nil {
		return
	}
	text := fmt.Sprintf("⚠️ Prediction run for %s failed: %v", date, err)
	if _, sendErr := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); sendErr != nil {
		n.logger.Error().Err(sendErr).Msg("Failed to send failure notice")
	}
}
