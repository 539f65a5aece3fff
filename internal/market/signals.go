package market

import "github.com/kirillm/momentum-bot/internal/domain"

const volumeWindow = 20

// Trend оценивает направление тренда по последним windowHours наблюдениям:
// сравнивает среднее ранней половины со средним поздней половины и возвращает
// относительное изменение. Меньше windowHours наблюдений — возвращает 0
// (нейтральный сигнал, неотличимый от действительно плоского тренда).
func (h *History) Trend(windowHours int) float64 {
	if len(h.samples) < windowHours {
		return 0
	}
	recent := h.samples[len(h.samples)-windowHours:]

	// При нечетном количестве лишнее наблюдение достается поздней половине
	mid := len(recent) / 2
	var first, second float64
	for i, s := range recent {
		if i < mid {
			first += s.Price
		} else {
			second += s.Price
		}
	}
	first /= float64(mid)
	second /= float64(len(recent) - mid)

	return (second - first) / first
}

// VolumeRatio возвращает отношение последнего объема к среднему за 20
// наблюдений. Меньше 20 наблюдений или нулевое среднее — нейтральные 1.0.
func (h *History) VolumeRatio() float64 {
	if len(h.samples) < volumeWindow {
		return 1.0
	}
	recent := h.samples[len(h.samples)-volumeWindow:]
	var sum float64
	for _, s := range recent {
		sum += s.Volume
	}
	avg := sum / volumeWindow
	if avg == 0 {
		return 1.0
	}
	return recent[len(recent)-1].Volume / avg
}

// Momentum мгновенное относительное изменение цены между двумя
// последовательными наблюдениями. Вызывающий обязан убедиться, что
// предыдущая цена существует: на первом тике momentum не считается.
func Momentum(lastPrice, currentPrice float64) float64 {
	return (currentPrice - lastPrice) / lastPrice
}

// Snapshot собирает все сигналы одного тика
func (h *History) Snapshot(momentum float64) domain.Signals {
	return domain.Signals{
		Momentum:    momentum,
		ShortTrend:  h.Trend(domain.ShortTrendWindow),
		MediumTrend: h.Trend(domain.MediumTrendWindow),
		LongTrend:   h.Trend(domain.LongTrendWindow),
		VolumeRatio: h.VolumeRatio(),
	}
}
