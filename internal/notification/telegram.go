package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier sends top-mover alerts through the Telegram Bot API.
// The bot client is created on first use, so a Telegram outage at startup
// does not stop the service.
type TelegramNotifier struct {
	token    string
	chatID   string
	endpoint string
	client   *http.Client
	log      zerolog.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramNotifier creates a Telegram notifier.
// botToken: Bot API token from @BotFather
// chatID: numeric chat id, or @channelname
func NewTelegramNotifier(botToken, chatID string, log zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		token:    botToken,
		chatID:   chatID,
		endpoint: tgbotapi.APIEndpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.With().Str("component", "telegram").Logger(),
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := t.api()
	if err != nil {
		return err
	}
	msg := t.message(telegramText(alert))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send: %w", redact(err))
	}
	t.log.Debug().Str("ticker", alert.Ticker).Msg("sent alert")
	return nil
}

func (t *TelegramNotifier) api() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.token, t.endpoint, t.client)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", redact(err))
	}
	t.log.Info().Str("bot", bot.Self.UserName).Msg("telegram bot ready")
	t.bot = bot
	return bot, nil
}

func (t *TelegramNotifier) message(text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(t.chatID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	return tgbotapi.NewMessageToChannel(t.chatID, text)
}

// redact drops the request URL, which embeds the bot token.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

func telegramText(a Alert) string {
	emoji := "📈"
	if a.ChangePercent < 0 {
		emoji = "📉"
	}
	if a.Level == AlertWarning {
		emoji = "⚠️ " + emoji
	}
	esc := func(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s) }

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n\n%s", emoji, esc(a.Title), esc(a.Message))
	if a.Source != "" {
		fmt.Fprintf(&b, "\n_%s_", esc("via "+a.Source))
	}
	return b.String()
}
