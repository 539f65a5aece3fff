package domain

// Trade sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order types
const (
	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
)

// Order statuses
const (
	StatusNew             = "NEW"
	StatusPartiallyFilled = "PARTIALLY_FILLED"
	StatusFilled          = "FILLED"
	StatusCanceled        = "CANCELED"
	StatusRejected        = "REJECTED"
)

// Sell reasons
const (
	ReasonMomentumDown  = "Momentum Down"
	ReasonEmergencyExit = "Emergency Trend Exit"
)

// Coins.ph constants
const (
	CoinsBaseURL    = "https://api.pro.coins.ph"
	CoinsRecvWindow = "5000"
	KlineInterval1h = "1h"
	KlineLimitMax   = 1000
)

// Symbol filter types
const (
	FilterPrice    = "PRICE_FILTER"
	FilterLotSize  = "LOT_SIZE"
	FilterNotional = "NOTIONAL"
)

// DustThreshold минимальный остаток актива, который еще имеет смысл продавать
const DustThreshold = 0.001

// Trend windows (hours)
const (
	ShortTrendWindow  = 4
	MediumTrendWindow = 12
	LongTrendWindow   = 48
)
