package exchange

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/kirillm/momentum-bot/internal/domain"
)

// filterValue возвращает первый фильтр указанного типа
func (s *SymbolInfo) filterValue(filterType string) *SymbolFilter {
	for i := range s.Filters {
		if s.Filters[i].FilterType == filterType {
			return &s.Filters[i]
		}
	}
	return nil
}

// MinQty минимальное количество базового актива в ордере
func (s *SymbolInfo) MinQty() float64 {
	f := s.filterValue(domain.FilterLotSize)
	if f == nil {
		return 0
	}
	v, _ := strconv.ParseFloat(f.MinQty, 64)
	return v
}

// MinNotional минимальная сумма ордера в котируемой валюте
func (s *SymbolInfo) MinNotional() float64 {
	f := s.filterValue(domain.FilterNotional)
	if f == nil {
		return 0
	}
	v, _ := strconv.ParseFloat(f.MinNotional, 64)
	return v
}

// FormatQuantity приводит количество к шагу лота (LOT_SIZE stepSize).
// Округление вниз: заявка не может превысить доступный баланс.
func (s *SymbolInfo) FormatQuantity(quantity float64) string {
	step := ""
	if f := s.filterValue(domain.FilterLotSize); f != nil {
		step = f.StepSize
	}
	return snapDown(quantity, step, 6)
}

// FormatPrice приводит цену к шагу цены (PRICE_FILTER tickSize)
func (s *SymbolInfo) FormatPrice(price float64) string {
	tick := ""
	if f := s.filterValue(domain.FilterPrice); f != nil {
		tick = f.TickSize
	}
	return snapDown(price, tick, 4)
}

// FormatAmount форматирует сумму в котируемой валюте
func FormatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).Round(2).String()
}

// snapDown округляет value вниз к ближайшему кратному step.
// Если step отсутствует или нулевой, округляет до defaultPlaces знаков.
func snapDown(value float64, step string, defaultPlaces int32) string {
	d := decimal.NewFromFloat(value)
	st, err := decimal.NewFromString(step)
	if err != nil || st.IsZero() {
		return d.RoundDown(defaultPlaces).String()
	}
	return d.Div(st).Floor().Mul(st).String()
}
