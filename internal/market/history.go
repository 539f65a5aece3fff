package market

import (
	"time"

	"github.com/kirillm/momentum-bot/internal/domain"
)

// Sample одно наблюдение цены и объема
type Sample struct {
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// History скользящее окно наблюдений рынка.
// Хранит записи не старше 2 × trend window; порядок по времени — инвариант,
// записи только добавляются в конец.
type History struct {
	samples   []Sample
	retention time.Duration
}

// NewHistory создает историю с окном хранения 2 × trendWindowHours часов
func NewHistory(trendWindowHours int) *History {
	return &History{
		retention: time.Duration(2*trendWindowHours) * time.Hour,
	}
}

// Record добавляет наблюдение и отсекает записи старше окна хранения
func (h *History) Record(price, volume float64, t time.Time) {
	h.samples = append(h.samples, Sample{Price: price, Volume: volume, Timestamp: t})
	h.prune(t)
}

// Seed заполняет историю из исторических свечей (от старых к новым)
func (h *History) Seed(candles []domain.Candle) {
	for _, c := range candles {
		h.samples = append(h.samples, Sample{Price: c.Close, Volume: c.Volume, Timestamp: c.OpenTime})
	}
	if len(h.samples) > 0 {
		h.prune(h.samples[len(h.samples)-1].Timestamp)
	}
}

// Len возвращает количество наблюдений в окне
func (h *History) Len() int {
	return len(h.samples)
}

// LastPrice возвращает цену последнего наблюдения
func (h *History) LastPrice() (float64, bool) {
	if len(h.samples) == 0 {
		return 0, false
	}
	return h.samples[len(h.samples)-1].Price, true
}

func (h *History) prune(now time.Time) {
	cutoff := now.Add(-h.retention)
	i := 0
	for i < len(h.samples) && !h.samples[i].Timestamp.After(cutoff) {
		i++
	}
	if i > 0 {
		h.samples = append(h.samples[:0], h.samples[i:]...)
	}
}
