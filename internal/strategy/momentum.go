package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kirillm/momentum-bot/internal/config"
	"github.com/kirillm/momentum-bot/internal/domain"
	"github.com/kirillm/momentum-bot/internal/exchange"
	"github.com/kirillm/momentum-bot/internal/market"
	"github.com/kirillm/momentum-bot/internal/position"
	"github.com/kirillm/momentum-bot/pkg/utils"
)

// Пороги трендовых фильтров стратегии
const (
	mediumTrendFloor   = -0.02 // не покупаем в сильном нисходящем тренде
	emergencyTrendExit = -0.05 // аварийный выход по длинному тренду
	strongUptrend      = 0.02  // усиленная позиция в сильном восходящем тренде
	sellFraction       = 0.9   // продаем 90% свободного остатка
	reserveFactor      = 1.2   // запас котируемой валюты сверх суммы покупки
	minOrderAmount     = 50    // минимальная сумма ордера в котируемой валюте
)

// Exchange операции биржи, используемые стратегией
type Exchange interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
	GetBalance(ctx context.Context, asset string) (domain.Balance, error)
	SymbolInfo(ctx context.Context, symbol string) (*exchange.SymbolInfo, error)
	AccountInfo(ctx context.Context) (*exchange.AccountInfo, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
	PlaceOrder(ctx context.Context, symbol, side, orderType string, p exchange.OrderParams) (*domain.OrderAck, error)
}

// MomentumStrategy торговый цикл momentum стратегии.
// Цена → история → сигналы → решение → ордер. Пишет состояние только
// цикл, но телеграм-команды (Status, TradeStats, Stop) приходят из
// своей горутины, поэтому тик и снимок статуса берут общий мьютекс.
type MomentumStrategy struct {
	exchange   Exchange
	logger     *utils.Logger
	pos        *position.Manager
	clock      position.Clock
	history    *market.History
	notifyFunc func(string)

	symbol        string
	baseAsset     string
	quoteAsset    string
	buyThreshold  float64
	sellThreshold float64
	baseAmount    float64
	checkInterval time.Duration

	mu         sync.Mutex
	symbolInfo *exchange.SymbolInfo
	lastPrice  float64
	hasLast    bool
	lastVolume float64
	running    bool

	stopOnce sync.Once
	stopChan chan struct{}
}

// New создает momentum стратегию. Часы общие с менеджером позиции,
// чтобы история и время удержания жили в одном времени.
func New(
	ex Exchange,
	pos *position.Manager,
	logger *utils.Logger,
	cfg *config.Config,
	clock position.Clock,
	notifyFunc func(string),
) *MomentumStrategy {
	if clock == nil {
		clock = position.RealClock()
	}

	// Окно хранения должно вмещать самый длинный трендовый фильтр
	historyWindow := cfg.Trend.WindowHours
	if historyWindow < domain.LongTrendWindow {
		historyWindow = domain.LongTrendWindow
	}

	return &MomentumStrategy{
		exchange:      ex,
		pos:           pos,
		clock:         clock,
		logger:        logger,
		history:       market.NewHistory(historyWindow),
		notifyFunc:    notifyFunc,
		symbol:        cfg.Coins.Symbol,
		buyThreshold:  cfg.Trade.BuyThreshold,
		sellThreshold: cfg.Trade.SellThreshold,
		baseAmount:    cfg.Trade.BaseAmount,
		checkInterval: cfg.Schedule.CheckInterval,
		stopChan:      make(chan struct{}),
	}
}

// Start выполняет стартовые проверки и запускает торговый цикл.
// Блокируется до Stop или отмены контекста.
func (s *MomentumStrategy) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("strategy already running")
	}
	s.mu.Unlock()

	if err := s.prepare(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	s.logger.Info("🚀 Momentum strategy started for %s (buy %.1f%%, sell %.1f%%, amount %.2f %s, interval %s)",
		s.symbol, s.buyThreshold*100, s.sellThreshold*100, s.baseAmount, s.quoteAsset, s.checkInterval)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	// Первый тик сразу после старта
	s.runTick(ctx)

	for {
		select {
		case <-ticker.C:
			s.runTick(ctx)
		case <-s.stopChan:
			s.logger.Info("🛑 Momentum strategy stopped")
			s.reportFinal()
			return nil
		case <-ctx.Done():
			s.logger.Info("🛑 Momentum strategy stopped: context cancelled")
			s.reportFinal()
			return ctx.Err()
		}
	}
}

// Stop останавливает цикл после завершения текущего тика.
// Повторные вызовы (сигнал процесса и /stop из чата) безопасны.
func (s *MomentumStrategy) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.stopChan)
	})
}

// prepare проверяет символ и аккаунт и прогревает историю из свечей.
// Телеграм-бот к этому моменту уже может обслуживать /status, поэтому
// прогрев идет под тем же мьютексом, что и тик.
func (s *MomentumStrategy) prepare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.exchange.SymbolInfo(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("failed to get symbol info: %w", err)
	}
	if info.Status != "TRADING" {
		return fmt.Errorf("symbol %s is not trading (status %s)", s.symbol, info.Status)
	}
	s.symbolInfo = info
	s.baseAsset = info.BaseAsset
	s.quoteAsset = info.QuoteAsset
	s.logger.Info("Symbol %s: base=%s quote=%s minQty=%v minNotional=%v",
		s.symbol, s.baseAsset, s.quoteAsset, info.MinQty(), info.MinNotional())

	account, err := s.exchange.AccountInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to get account status: %w", err)
	}
	if !account.CanTrade {
		return fmt.Errorf("account is not allowed to trade")
	}

	// Прогрев истории часовыми свечами, чтобы трендовые окна
	// были рабочими сразу, а не после суток накопления
	candles, err := s.exchange.Klines(ctx, s.symbol, domain.KlineInterval1h, 2*domain.LongTrendWindow)
	if err != nil {
		s.logger.Warn("Failed to seed history from klines: %v", err)
	} else {
		s.history.Seed(candles)
		if len(candles) > 0 {
			s.lastVolume = candles[len(candles)-1].Volume
		}
		s.logger.Info("History seeded with %d hourly candles", s.history.Len())
	}

	return nil
}

// runTick выполняет один тик под мьютексом. Любая ошибка или паника
// внутри тика логируется и не останавливает цикл.
func (s *MomentumStrategy) runTick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic in strategy tick: %v", r)
		}
	}()

	if err := s.tick(ctx); err != nil {
		s.logger.Error("Error in strategy tick: %v", err)
	}
}

// tick одна итерация стратегии
func (s *MomentumStrategy) tick(ctx context.Context) error {
	price, err := s.exchange.GetPrice(ctx, s.symbol)
	if err != nil {
		// Пропускаем тик, состояние не трогаем
		return fmt.Errorf("failed to get price, skipping tick: %w", err)
	}

	s.history.Record(price, s.tickVolume(ctx), s.clock.Now())

	if !s.hasLast {
		s.lastPrice = price
		s.hasLast = true
		s.logger.Info("First price recorded: %.4f, waiting for next tick", price)
		return nil
	}

	momentum := market.Momentum(s.lastPrice, price)
	signals := s.history.Snapshot(momentum)

	baseBal := s.balance(ctx, s.baseAsset)
	quoteBal := s.balance(ctx, s.quoteAsset)

	s.logger.Info("Tick %s: price=%.4f momentum=%+.2f%% trends ST:%+.1f%% MT:%+.1f%% LT:%+.1f%% vol=%.2fx | %s=%.6f %s=%.2f | position=%s trades_today=%d",
		s.symbol, price, signals.Momentum*100,
		signals.ShortTrend*100, signals.MediumTrend*100, signals.LongTrend*100,
		signals.VolumeRatio,
		s.baseAsset, baseBal, s.quoteAsset, quoteBal,
		s.pos.State(), s.pos.TradesToday())

	if s.history.Len() < domain.MediumTrendWindow {
		s.logger.Debug("History warming up: %d samples", s.history.Len())
	}

	switch {
	case s.shouldBuy(signals, quoteBal):
		s.logger.Info("🚀 BUY signal: momentum %+.2f%% > %.2f%%, medium trend %+.1f%%",
			signals.Momentum*100, s.buyThreshold*100, signals.MediumTrend*100)
		s.placeBuy(ctx, price, signals)

	case s.shouldSell(signals, baseBal):
		s.logger.Info("📉 SELL signal: momentum %+.2f%% < -%.2f%%",
			signals.Momentum*100, s.sellThreshold*100)
		s.placeSell(ctx, price, signals, baseBal, domain.ReasonMomentumDown, false)

	case s.shouldExitEmergency(signals, baseBal):
		s.logger.Warn("🚨 EMERGENCY EXIT: long trend %+.1f%%", signals.LongTrend*100)
		s.placeSell(ctx, price, signals, baseBal, domain.ReasonEmergencyExit, true)

	default:
		s.logNoAction(signals, baseBal, quoteBal)
	}

	s.lastPrice = price
	return nil
}

// tickVolume возвращает объем последней часовой свечи для истории.
// Ошибка не критична: переиспользуем предыдущее значение.
func (s *MomentumStrategy) tickVolume(ctx context.Context) float64 {
	candles, err := s.exchange.Klines(ctx, s.symbol, domain.KlineInterval1h, 1)
	if err != nil || len(candles) == 0 {
		return s.lastVolume
	}
	s.lastVolume = candles[len(candles)-1].Volume
	return s.lastVolume
}

// balance возвращает свободный остаток актива.
// Ошибки деградируют до нуля: без баланса ни одно правило не сработает,
// а следующий тик попробует снова.
func (s *MomentumStrategy) balance(ctx context.Context, asset string) float64 {
	bal, err := s.exchange.GetBalance(ctx, asset)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("Failed to get %s balance: %v", asset, err)
		}
		return 0
	}
	return bal.Free
}

func (s *MomentumStrategy) shouldBuy(sig domain.Signals, quoteBal float64) bool {
	return sig.Momentum > s.buyThreshold &&
		sig.MediumTrend > mediumTrendFloor &&
		quoteBal > s.baseAmount*reserveFactor &&
		s.pos.CanTradeToday() &&
		!s.pos.IsLong()
}

func (s *MomentumStrategy) shouldSell(sig domain.Signals, baseBal float64) bool {
	return sig.Momentum < -s.sellThreshold &&
		baseBal > domain.DustThreshold &&
		s.pos.IsLong() &&
		s.pos.CanSellPosition() &&
		s.pos.CanTradeToday()
}

// shouldExitEmergency аварийный выход: дневной лимит сознательно не
// проверяется, минимальная выдержка — проверяется
func (s *MomentumStrategy) shouldExitEmergency(sig domain.Signals, baseBal float64) bool {
	return sig.LongTrend < emergencyTrendExit &&
		baseBal > domain.DustThreshold &&
		s.pos.IsLong() &&
		s.pos.CanSellPosition()
}

// placeBuy размещает рыночную покупку на сумму в котируемой валюте
func (s *MomentumStrategy) placeBuy(ctx context.Context, price float64, sig domain.Signals) {
	// Динамический размер позиции по силе тренда
	amount := s.baseAmount
	switch {
	case sig.MediumTrend > strongUptrend:
		amount = s.baseAmount * 1.2
		s.logger.Info("Strong uptrend, increasing position size to %.2f", amount)
	case sig.MediumTrend > 0:
		// базовый размер
	default:
		amount = s.baseAmount * 0.8
		s.logger.Info("Weak trend, reducing position size to %.2f", amount)
	}

	minNotional := s.symbolInfo.MinNotional()
	if minNotional < minOrderAmount {
		minNotional = minOrderAmount
	}
	if amount < minNotional {
		s.logger.Warn("Trade amount %.2f below minimum %.2f, skipping buy", amount, minNotional)
		return
	}

	order, err := s.exchange.PlaceOrder(ctx, s.symbol, domain.SideBuy, domain.OrderTypeMarket, exchange.OrderParams{
		QuoteOrderQty: exchange.FormatAmount(amount),
	})
	if err != nil {
		// Без ключа идемпотентности повтор недопустим: решение
		// принимается заново на следующем тике
		s.logger.Error("❌ Failed to place buy order: %v", err)
		return
	}

	if err := s.pos.Buy(price); err != nil {
		s.logger.Error("Position state error after buy: %v", err)
	}

	quantity := amount / price
	s.logger.Info("✅ BUY order placed: %.2f %s (~%.6f %s at %.4f), order ID %d, status %s",
		amount, s.quoteAsset, quantity, s.baseAsset, price, order.OrderID, order.Status)

	s.notify(fmt.Sprintf(
		"🚀 BUY Executed\n\nSymbol: %s\nAmount: %.2f %s\nQuantity: ~%.6f %s\nPrice: %.4f\nMedium trend: %+.1f%%\nOrder ID: %d",
		s.symbol, amount, s.quoteAsset, quantity, s.baseAsset, price, sig.MediumTrend*100, order.OrderID))
}

// placeSell размещает рыночную продажу 90% свободного остатка
func (s *MomentumStrategy) placeSell(ctx context.Context, price float64, sig domain.Signals, baseBal float64, reason string, emergency bool) {
	quantity := baseBal * sellFraction
	minQty := s.symbolInfo.MinQty()
	if minQty < domain.DustThreshold {
		minQty = domain.DustThreshold
	}
	if quantity < minQty {
		s.logger.Warn("Quantity %.8f below minimum %.8f, skipping sell", quantity, minQty)
		return
	}

	entryPrice, entryTime, hadEntry := s.pos.Entry()

	order, err := s.exchange.PlaceOrder(ctx, s.symbol, domain.SideSell, domain.OrderTypeMarket, exchange.OrderParams{
		Quantity: s.symbolInfo.FormatQuantity(quantity),
	})
	if err != nil {
		s.logger.Error("❌ Failed to place sell order: %v", err)
		return
	}

	var stateErr error
	if emergency {
		stateErr = s.pos.SellEmergency()
	} else {
		stateErr = s.pos.Sell()
	}
	if stateErr != nil {
		s.logger.Error("Position state error after sell: %v", stateErr)
	}

	estimated := quantity * price
	s.logger.Info("✅ SELL order placed: %.6f %s (~%.2f %s at %.4f), reason: %s, order ID %d, status %s",
		quantity, s.baseAsset, estimated, s.quoteAsset, price, reason, order.OrderID, order.Status)

	plLine := ""
	if hadEntry {
		profitLoss := (price - entryPrice) / entryPrice * 100
		holdTime := s.clock.Now().Sub(entryTime)
		s.logger.Info("📈 P/L vs entry: %+.1f%%, hold time: %.1fh", profitLoss, holdTime.Hours())
		plLine = fmt.Sprintf("\nP/L: %+.1f%% (held %.1fh)", profitLoss, holdTime.Hours())
	}

	s.notify(fmt.Sprintf(
		"📉 SELL Executed\n\nSymbol: %s\nQuantity: %.6f %s\nEstimated: %.2f %s\nPrice: %.4f\nReason: %s\nOrder ID: %d%s",
		s.symbol, quantity, s.baseAsset, estimated, s.quoteAsset, price, reason, order.OrderID, plLine))
}

// logNoAction объясняет, какое условие заблокировало каждое правило
func (s *MomentumStrategy) logNoAction(sig domain.Signals, baseBal, quoteBal float64) {
	var reasons []string

	if !s.pos.IsLong() {
		if sig.Momentum <= s.buyThreshold {
			reasons = append(reasons, fmt.Sprintf("momentum %+.2f%% below buy threshold %.2f%%",
				sig.Momentum*100, s.buyThreshold*100))
		}
		if sig.MediumTrend <= mediumTrendFloor {
			reasons = append(reasons, fmt.Sprintf("medium trend %+.1f%% too weak", sig.MediumTrend*100))
		}
		if quoteBal <= s.baseAmount*reserveFactor {
			reasons = append(reasons, fmt.Sprintf("%s balance %.2f below reserve %.2f",
				s.quoteAsset, quoteBal, s.baseAmount*reserveFactor))
		}
	} else {
		if sig.Momentum >= -s.sellThreshold {
			reasons = append(reasons, fmt.Sprintf("momentum %+.2f%% above sell threshold -%.2f%%",
				sig.Momentum*100, s.sellThreshold*100))
		}
		if !s.pos.CanSellPosition() {
			reasons = append(reasons, fmt.Sprintf("min hold time not met (%.1fh)", s.pos.HoldDuration().Hours()))
		}
	}
	if !s.pos.CanTradeToday() {
		reasons = append(reasons, fmt.Sprintf("daily trade limit reached (%d)", s.pos.TradesToday()))
	}

	if len(reasons) > 0 {
		s.logger.Info("No trading action: %s", strings.Join(reasons, "; "))
	} else {
		s.logger.Info("No trading conditions met, holding")
	}
}

// reportFinal пишет итоговые балансы и статистику сделок при остановке.
// Собственный контекст: родительский к этому моменту уже может быть отменен.
func (s *MomentumStrategy) reportFinal() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	baseBal := s.balance(ctx, s.baseAsset)
	quoteBal := s.balance(ctx, s.quoteAsset)
	s.logger.Info("📊 Final balances: %s=%.6f %s=%.2f", s.baseAsset, baseBal, s.quoteAsset, quoteBal)

	for date, count := range s.pos.DailyStats() {
		s.logger.Info("📊 %s: %d trades", date, count)
	}
}

// Status возвращает краткий статус стратегии для управляющих команд.
// Цена запрашивается до захвата мьютекса, чтобы сетевой вызов
// не задерживал торговый цикл.
func (s *MomentumStrategy) Status(ctx context.Context) string {
	price, err := s.exchange.GetPrice(ctx, s.symbol)
	priceLine := "n/a"
	if err == nil {
		priceLine = fmt.Sprintf("%.4f", price)
	}

	posLine := string(s.pos.State())
	if entryPrice, entryTime, ok := s.pos.Entry(); ok {
		posLine = fmt.Sprintf("LONG since %s at %.4f", entryTime.Format("2006-01-02 15:04"), entryPrice)
	}

	s.mu.Lock()
	samples := s.history.Len()
	running := s.running
	s.mu.Unlock()

	return fmt.Sprintf(
		"📊 Momentum Bot Status\n\nSymbol: %s\nPrice: %s\nPosition: %s\nTrades today: %d\nHistory: %d samples\nRunning: %v",
		s.symbol, priceLine, posLine, s.pos.TradesToday(), samples, running)
}

// TradeStats возвращает статистику сделок по дням
func (s *MomentumStrategy) TradeStats() map[string]int {
	return s.pos.DailyStats()
}

func (s *MomentumStrategy) notify(message string) {
	if s.notifyFunc != nil {
		s.notifyFunc(message)
	}
}
