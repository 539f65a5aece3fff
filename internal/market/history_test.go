package market

import (
	"testing"
	"time"

	"github.com/kirillm/momentum-bot/internal/domain"
)

func TestRecordAndLastPrice(t *testing.T) {
	h := NewHistory(12)
	now := time.Now()

	if _, ok := h.LastPrice(); ok {
		t.Error("empty history must not report a last price")
	}

	h.Record(100, 10, now)
	h.Record(101, 12, now.Add(time.Hour))

	if h.Len() != 2 {
		t.Errorf("Len() = %d, want 2", h.Len())
	}
	price, ok := h.LastPrice()
	if !ok || price != 101 {
		t.Errorf("LastPrice() = %v, %v, want 101, true", price, ok)
	}
}

func TestRecord_PrunesOldSamples(t *testing.T) {
	h := NewHistory(12) // retention 24h
	start := time.Now()

	// 30 hourly samples: the first six fall out of the 24h window
	for i := 0; i < 30; i++ {
		h.Record(float64(100+i), 10, start.Add(time.Duration(i)*time.Hour))
	}

	if h.Len() != 24 {
		t.Errorf("Len() = %d, want 24 after pruning", h.Len())
	}
	price, _ := h.LastPrice()
	if price != 129 {
		t.Errorf("LastPrice() = %v, want 129 (newest sample survives)", price)
	}
}

func TestSeed(t *testing.T) {
	h := NewHistory(12)
	start := time.Now().Add(-48 * time.Hour)

	candles := make([]domain.Candle, 0, 30)
	for i := 0; i < 30; i++ {
		candles = append(candles, domain.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Close:    float64(200 + i),
			Volume:   5,
		})
	}
	h.Seed(candles)

	if h.Len() != 24 {
		t.Errorf("Len() = %d, want 24 (seed respects retention)", h.Len())
	}
	price, _ := h.LastPrice()
	if price != 229 {
		t.Errorf("LastPrice() = %v, want 229", price)
	}
}

func TestTrend(t *testing.T) {
	now := time.Now()

	record := func(prices ...float64) *History {
		h := NewHistory(48)
		for i, p := range prices {
			h.Record(p, 10, now.Add(time.Duration(i)*time.Hour))
		}
		return h
	}

	t.Run("insufficient samples returns neutral zero", func(t *testing.T) {
		h := record(100, 101, 102)
		if got := h.Trend(4); got != 0 {
			t.Errorf("Trend(4) = %v, want 0", got)
		}
	})

	t.Run("rising prices give positive trend", func(t *testing.T) {
		// halves: avg(100,102)=101 vs avg(104,106)=105
		h := record(100, 102, 104, 106)
		got := h.Trend(4)
		want := (105.0 - 101.0) / 101.0
		if got != want {
			t.Errorf("Trend(4) = %v, want %v", got, want)
		}
	})

	t.Run("falling prices give negative trend", func(t *testing.T) {
		h := record(106, 104, 102, 100)
		if got := h.Trend(4); got >= 0 {
			t.Errorf("Trend(4) = %v, want negative", got)
		}
	})

	t.Run("flat prices give zero", func(t *testing.T) {
		h := record(100, 100, 100, 100)
		if got := h.Trend(4); got != 0 {
			t.Errorf("Trend(4) = %v, want 0", got)
		}
	})

	t.Run("odd window gives extra sample to later half", func(t *testing.T) {
		// mid = 2: first half (100,100), second half (100,100,106)
		h := record(100, 100, 100, 100, 106)
		got := h.Trend(5)
		want := (102.0 - 100.0) / 100.0
		if got != want {
			t.Errorf("Trend(5) = %v, want %v", got, want)
		}
	})

	t.Run("uses only last window samples", func(t *testing.T) {
		// old crash outside the 4h window must not affect the signal
		h := record(500, 500, 100, 100, 100, 100)
		if got := h.Trend(4); got != 0 {
			t.Errorf("Trend(4) = %v, want 0", got)
		}
	})
}

func TestVolumeRatio(t *testing.T) {
	now := time.Now()

	t.Run("insufficient samples returns neutral one", func(t *testing.T) {
		h := NewHistory(48)
		for i := 0; i < 19; i++ {
			h.Record(100, 10, now.Add(time.Duration(i)*time.Hour))
		}
		if got := h.VolumeRatio(); got != 1.0 {
			t.Errorf("VolumeRatio() = %v, want 1.0", got)
		}
	})

	t.Run("spike over flat average", func(t *testing.T) {
		h := NewHistory(48)
		for i := 0; i < 19; i++ {
			h.Record(100, 10, now.Add(time.Duration(i)*time.Hour))
		}
		h.Record(100, 30, now.Add(19*time.Hour))
		// avg = (19*10 + 30) / 20 = 11, ratio = 30/11
		got := h.VolumeRatio()
		want := 30.0 / 11.0
		if got != want {
			t.Errorf("VolumeRatio() = %v, want %v", got, want)
		}
	})

	t.Run("zero volumes return neutral one", func(t *testing.T) {
		h := NewHistory(48)
		for i := 0; i < 20; i++ {
			h.Record(100, 0, now.Add(time.Duration(i)*time.Hour))
		}
		if got := h.VolumeRatio(); got != 1.0 {
			t.Errorf("VolumeRatio() = %v, want 1.0", got)
		}
	})
}

func TestMomentum(t *testing.T) {
	tests := []struct {
		name    string
		last    float64
		current float64
		want    float64
	}{
		{"upward move", 100, 102, 0.02},
		{"downward move", 100, 95, -0.05},
		{"no move", 100, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Momentum(tt.last, tt.current); got != tt.want {
				t.Errorf("Momentum(%v, %v) = %v, want %v", tt.last, tt.current, got, tt.want)
			}
		})
	}
}
