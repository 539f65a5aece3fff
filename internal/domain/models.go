package domain

import "time"

// Candle представляет одну историческую свечу (часовой интервал)
type Candle struct {
	OpenTime time.Time
	Close    float64
	Volume   float64
}

// Balance представляет баланс актива на бирже
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// Total возвращает суммарный баланс (свободный + заблокированный)
func (b Balance) Total() float64 {
	return b.Free + b.Locked
}

// OrderAck подтверждение размещенного ордера
type OrderAck struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          string
	Type          string
	Status        string
	ExecutedQty   float64
	CreatedAt     time.Time
}

// Trade представляет исполненную сделку бота
type Trade struct {
	Symbol    string
	Side      string
	Quantity  float64
	Price     float64
	Amount    float64
	OrderID   int64
	Reason    string
	CreatedAt time.Time
}

// Signals снимок сигналов, рассчитанных на одном тике
type Signals struct {
	Momentum    float64
	ShortTrend  float64
	MediumTrend float64
	LongTrend   float64
	VolumeRatio float64
}
