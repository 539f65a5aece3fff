package position

import "time"

// Clock абстракция текущего времени: в тестах подменяется фейковыми часами,
// чтобы проверять выдержку позиции и дневные лимиты без реального ожидания
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock возвращает часы, использующие системное время
func RealClock() Clock { return realClock{} }
