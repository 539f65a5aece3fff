package telegram

import "fmt"

// FormatPrice форматирует ответ на команду /price
func FormatPrice(symbol string, price float64) string {
	return fmt.Sprintf("💰 %s: %.4f", symbol, price)
}

// FormatTradeStats форматирует статистику сделок по дням
func FormatTradeStats(stats map[string]int) string {
	if len(stats) == 0 {
		return "📊 No trades yet"
	}
	out := "📊 Daily trades:\n"
	for date, count := range stats {
		out += fmt.Sprintf("  %s: %d\n", date, count)
	}
	return out
}
