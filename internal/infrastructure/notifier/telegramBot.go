package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"items_seller/internal/domain/entity"
)

type TelegramBot struct {
	bot    *telego.Bot
	chatID int64
}

func NewTelegramBot(token string, chatID int64) (*TelegramBot, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &TelegramBot{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// Run обрабатывает сводки запусков из канала до его закрытия.
func (b *TelegramBot) Run(ctx context.Context, summaries <-chan entity.RunSummary) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case summary, ok := <-summaries:
			if !ok {
				return nil
			}
			if err := b.SendSummary(ctx, summary); err != nil {
				logger(ctx).Error("failed to send summary", "error", err)
			}
		}
	}
}

func (b *TelegramBot) SendSummary(ctx context.Context, summary entity.RunSummary) error {
	msg := tu.Message(
		tu.ID(b.chatID),
		formatSummary(summary),
	).WithParseMode(telego.ModeHTML)

	_, err := b.bot.SendMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

// SendText отправляет простое текстовое сообщение.
func (b *TelegramBot) SendText(ctx context.Context, text string) error {
	msg := tu.Message(tu.ID(b.chatID), text)

	_, err := b.bot.SendMessage(ctx, msg)
	return err
}

func outcomeEmoji(outcome entity.RunOutcome) string {
	switch outcome {
	case entity.RunOutcomeSuccess:
		return "✅"
	case entity.RunOutcomePartial:
		return "⚠️"
	default:
		return "❌"
	}
}

func formatSummary(summary entity.RunSummary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s <b>Liquidation run %s</b>\n", outcomeEmoji(summary.Outcome), summary.ID)
	fmt.Fprintf(&sb, "⏱ Duration: %s\n\n", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second))

	for _, account := range summary.Accounts {
		fmt.Fprintf(
			&sb,
			"👤 <b>%s</b> — %s\n💰 sold %d/%d, wallet %+d\n",
			account.Account,
			account.FinalState,
			account.Sold,
			account.Attempted,
			account.WalletDelta(),
		)
		if account.Dropped > 0 {
			fmt.Fprintf(&sb, "🗑 dropped %d\n", account.Dropped)
		}
		if account.ResidualValue > 0 {
			fmt.Fprintf(&sb, "📦 unsold value %d\n", account.ResidualValue)
		}
		for _, e := range account.Errors {
			fmt.Fprintf(&sb, "❗ %s\n", e)
		}
		sb.WriteString("\n")
	}

	for _, e := range summary.Errors {
		fmt.Fprintf(&sb, "❗ %s\n", e)
	}

	return strings.TrimRight(sb.String(), "\n")
}
