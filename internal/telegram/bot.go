package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/kirillm/momentum-bot/pkg/utils"
)

// Strategy управляющие операции стратегии, доступные из чата
type Strategy interface {
	Status(ctx context.Context) string
	TradeStats() map[string]int
	Stop()
}

// Exchange операции биржи, доступные из чата
type Exchange interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// Bot телеграм-интерфейс бота: уведомления о сделках и команды управления
type Bot struct {
	api      *tgbotapi.BotAPI
	chatID   int64
	logger   *utils.Logger
	exchange Exchange
	strategy Strategy
	symbol   string
	limiter  *rate.Limiter
}

// NewBot создает телеграм-бота
func NewBot(token string, chatID int64, logger *utils.Logger, ex Exchange, strategy Strategy, symbol string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("Telegram bot authorized: @%s", api.Self.UserName)

	return &Bot{
		api:      api,
		chatID:   chatID,
		logger:   logger,
		exchange: ex,
		strategy: strategy,
		symbol:   symbol,
		limiter:  rate.NewLimiter(rate.Limit(1), 3),
	}, nil
}

// Start запускает обработку сообщений. Блокируется до отмены контекста.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.Notify("🤖 Momentum Trading Bot started!\nUse /help to see available commands.")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			// Отвечаем только настроенному чату
			if update.Message.Chat.ID != b.chatID {
				b.logger.Warn("Ignoring message from unauthorized chat %d", update.Message.Chat.ID)
				continue
			}

			if !b.limiter.Allow() {
				b.logger.Warn("Rate limit exceeded for chat %d", update.Message.Chat.ID)
				continue
			}

			b.handleCommand(ctx, update.Message.Text)
		}
	}
}

// handleCommand обрабатывает одну команду
func (b *Bot) handleCommand(ctx context.Context, text string) {
	cmd, arg := ParseCommand(text)

	switch cmd {
	case "status":
		b.Notify(b.strategy.Status(ctx))

	case "price":
		symbol := b.symbol
		if arg != "" {
			symbol = arg
		}
		price, err := b.exchange.GetPrice(ctx, symbol)
		if err != nil {
			b.Notify(fmt.Sprintf("❌ Failed to get price for %s: %v", symbol, err))
			return
		}
		b.Notify(FormatPrice(symbol, price))

	case "trades":
		b.Notify(FormatTradeStats(b.strategy.TradeStats()))

	case "stop":
		b.Notify("🛑 Stopping bot after the current tick...")
		b.strategy.Stop()

	case "help":
		b.Notify(helpText)

	case "":
		// не команда, игнорируем

	default:
		b.Notify(fmt.Sprintf("Unknown command /%s\n%s", cmd, helpText))
	}
}

const helpText = "Available commands:\n" +
	"/status — bot and position status\n" +
	"/price [SYMBOL] — current price\n" +
	"/trades — daily trade counts\n" +
	"/stop — stop trading loop\n" +
	"/help — this message"

// Notify отправляет сообщение в настроенный чат
func (b *Bot) Notify(message string) {
	msg := tgbotapi.NewMessage(b.chatID, message)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send telegram message: %v", err)
	}
}

// ParseCommand разбирает текст сообщения на команду и аргумент
func ParseCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	fields := strings.Fields(strings.TrimPrefix(text, "/"))
	if len(fields) == 0 {
		return "", ""
	}
	cmd = strings.ToLower(fields[0])
	if len(fields) > 1 {
		arg = strings.ToUpper(fields[1])
	}
	return cmd, arg
}
