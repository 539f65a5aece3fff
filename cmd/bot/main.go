package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kirillm/momentum-bot/internal/config"
	"github.com/kirillm/momentum-bot/internal/exchange"
	"github.com/kirillm/momentum-bot/internal/position"
	"github.com/kirillm/momentum-bot/internal/strategy"
	"github.com/kirillm/momentum-bot/internal/telegram"
	"github.com/kirillm/momentum-bot/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewFileLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Printf("Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Info("Momentum Trading Bot")
	logger.Info("   Symbol: %s", cfg.Coins.Symbol)
	logger.Info("   Buy threshold: %.1f%%", cfg.Trade.BuyThreshold*100)
	logger.Info("   Sell threshold: %.1f%%", cfg.Trade.SellThreshold*100)
	logger.Info("   Trade amount: %.2f", cfg.Trade.BaseAmount)
	logger.Info("   Min hold time: %s", cfg.Trade.MinHold)
	logger.Info("   Max trades/day: %d", cfg.Trade.MaxTradesPerDay)
	logger.Info("   Trend window: %dh", cfg.Trend.WindowHours)
	logger.Info("   Check interval: %s", cfg.Schedule.CheckInterval)

	client := exchange.NewCoinsClient(cfg.Coins.APIKey, cfg.Coins.SecretKey, cfg.Coins.BaseURL)
	clock := position.RealClock()
	posManager := position.NewManager(cfg.Trade.MinHold, cfg.Trade.MaxTradesPerDay, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var notifyFunc func(string)
	var bot *telegram.Bot

	strat := strategy.New(client, posManager, logger, cfg, clock, func(msg string) {
		if notifyFunc != nil {
			notifyFunc(msg)
		}
	})

	if cfg.Telegram.Enabled {
		bot, err = telegram.NewBot(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger, client, strat, cfg.Coins.Symbol)
		if err != nil {
			logger.Error("Failed to start telegram bot: %v", err)
			os.Exit(1)
		}
		notifyFunc = bot.Notify
		go bot.Start(ctx)
	} else {
		logger.Warn("Telegram not configured, notifications disabled")
	}

	fmt.Println("⚠️  WARNING: This bot will place real trades with real money!")
	if !confirm("Start momentum bot? (yes/no): ") {
		fmt.Println("Bot not started")
		return
	}

	// Останавливаемся после текущего тика по Ctrl+C / SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		strat.Stop()
	}()

	if err := strat.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("Bot stopped with error: %v", err)
		os.Exit(1)
	}
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
