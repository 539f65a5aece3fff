package position

import (
	"sync"
	"time"

	"github.com/kirillm/momentum-bot/internal/domain"
)

// State состояние позиции
type State string

const (
	StateFlat State = "FLAT"
	StateLong State = "LONG"
)

// Manager машина состояний позиции: отслеживает открытую позицию,
// цену и время входа, и дневной счетчик сделок. Пишет состояние только
// торговый цикл, но телеграм-команды читают его из своей горутины,
// поэтому каждый метод берет мьютекс.
type Manager struct {
	clock           Clock
	minHold         time.Duration
	maxTradesPerDay int

	mu          sync.Mutex
	state       State
	entryPrice  float64
	entryTime   time.Time
	dailyTrades map[string]int
}

// NewManager создает менеджер позиции в состоянии FLAT
func NewManager(minHold time.Duration, maxTradesPerDay int, clock Clock) *Manager {
	if clock == nil {
		clock = RealClock()
	}
	return &Manager{
		clock:           clock,
		minHold:         minHold,
		maxTradesPerDay: maxTradesPerDay,
		state:           StateFlat,
		dailyTrades:     make(map[string]int),
	}
}

// State возвращает текущее состояние позиции
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsLong сообщает, открыта ли позиция
func (m *Manager) IsLong() bool {
	return m.State() == StateLong
}

// Entry возвращает цену и время входа открытой позиции
func (m *Manager) Entry() (price float64, at time.Time, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateLong {
		return 0, time.Time{}, false
	}
	return m.entryPrice, m.entryTime, true
}

// HoldDuration возвращает, сколько времени позиция уже удерживается
func (m *Manager) HoldDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateLong {
		return 0
	}
	return m.clock.Now().Sub(m.entryTime)
}

// CanTradeToday проверяет дневной лимит сделок для текущей календарной даты
func (m *Manager) CanTradeToday() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canTradeToday()
}

func (m *Manager) canTradeToday() bool {
	return m.dailyTrades[m.today()] < m.maxTradesPerDay
}

// CanSellPosition проверяет, продержана ли позиция минимальное время
func (m *Manager) CanSellPosition() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canSellPosition()
}

func (m *Manager) canSellPosition() bool {
	if m.entryTime.IsZero() {
		return true
	}
	return m.clock.Now().Sub(m.entryTime) >= m.minHold
}

// TradesToday возвращает количество сделок за сегодня
func (m *Manager) TradesToday() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyTrades[m.today()]
}

// DailyStats возвращает копию статистики сделок по дням
func (m *Manager) DailyStats() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make(map[string]int, len(m.dailyTrades))
	for day, count := range m.dailyTrades {
		stats[day] = count
	}
	return stats
}

// Buy переводит FLAT → LONG. Разрешено только без открытой позиции
// и в пределах дневного лимита. Каждый исполненный переход увеличивает
// дневной счетчик.
func (m *Manager) Buy(price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateFlat {
		return domain.ErrPositionOpen
	}
	if !m.canTradeToday() {
		return domain.ErrTradeLimitReached
	}

	m.state = StateLong
	m.entryPrice = price
	m.entryTime = m.clock.Now()
	m.recordTrade()
	return nil
}

// Sell переводит LONG → FLAT с проверкой минимальной выдержки
// и дневного лимита.
func (m *Manager) Sell() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateLong {
		return domain.ErrNoPosition
	}
	if !m.canSellPosition() {
		return domain.ErrMinHoldTime
	}
	if !m.canTradeToday() {
		return domain.ErrTradeLimitReached
	}

	m.close()
	return nil
}

// SellEmergency переводит LONG → FLAT, игнорируя дневной лимит.
// Путь аварийного выхода по сильному нисходящему тренду: минимальная
// выдержка все еще обязательна, а сделка все равно учитывается в счетчике.
func (m *Manager) SellEmergency() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateLong {
		return domain.ErrNoPosition
	}
	if !m.canSellPosition() {
		return domain.ErrMinHoldTime
	}

	m.close()
	return nil
}

func (m *Manager) close() {
	m.state = StateFlat
	m.entryPrice = 0
	m.entryTime = time.Time{}
	m.recordTrade()
}

func (m *Manager) recordTrade() {
	m.dailyTrades[m.today()]++
}

func (m *Manager) today() string {
	return m.clock.Now().Format("2006-01-02")
}
