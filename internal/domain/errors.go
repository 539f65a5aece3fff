package domain

import "errors"

var (
	// ErrNotFound возвращается когда запись не найдена
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized возвращается при ошибке авторизации
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInsufficientBalance возвращается при недостаточном балансе
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTradeLimitReached возвращается при достижении дневного лимита сделок
	ErrTradeLimitReached = errors.New("daily trade limit reached")

	// ErrMinHoldTime возвращается когда позиция не продержана минимальное время
	ErrMinHoldTime = errors.New("minimum hold time not elapsed")

	// ErrNoPosition возвращается при попытке продать без открытой позиции
	ErrNoPosition = errors.New("no open position")

	// ErrPositionOpen возвращается при попытке купить с уже открытой позицией
	ErrPositionOpen = errors.New("position already open")

	// ErrExchangeAPI возвращается при ошибке API биржи
	ErrExchangeAPI = errors.New("exchange API error")

	// ErrMalformedResponse возвращается когда ответ биржи не содержит ожидаемых полей
	ErrMalformedResponse = errors.New("malformed exchange response")
)
