package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillm/momentum-bot/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	readAttempts   = 3
)

// CoinsClient клиент REST API биржи Coins.ph
type CoinsClient struct {
	apiKey     string
	secretKey  string
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	recvWindow string
}

// NewCoinsClient создает новый клиент Coins.ph
func NewCoinsClient(apiKey, secretKey, baseURL string) *CoinsClient {
	if baseURL == "" {
		baseURL = domain.CoinsBaseURL
	}
	return &CoinsClient{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		recvWindow: domain.CoinsRecvWindow,
	}
}

type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

// SymbolFilter торговое ограничение символа
type SymbolFilter struct {
	FilterType  string `json:"filterType"`
	TickSize    string `json:"tickSize"`
	StepSize    string `json:"stepSize"`
	MinQty      string `json:"minQty"`
	MinNotional string `json:"minNotional"`
}

// SymbolInfo торговые правила символа
type SymbolInfo struct {
	Symbol         string         `json:"symbol"`
	Status         string         `json:"status"`
	BaseAsset      string         `json:"baseAsset"`
	QuoteAsset     string         `json:"quoteAsset"`
	BasePrecision  int            `json:"baseAssetPrecision"`
	QuotePrecision int            `json:"quotePrecision"`
	Filters        []SymbolFilter `json:"filters"`
}

// ExchangeInfo ответ /openapi/v1/exchangeInfo
type ExchangeInfo struct {
	Timezone   string       `json:"timezone"`
	ServerTime int64        `json:"serverTime"`
	Symbols    []SymbolInfo `json:"symbols"`
}

type tickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// AccountInfo ответ /openapi/v1/account
type AccountInfo struct {
	CanTrade    bool `json:"canTrade"`
	CanWithdraw bool `json:"canWithdraw"`
	CanDeposit  bool `json:"canDeposit"`
	Balances    []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

// CryptoAccount запись /openapi/account/v3/crypto-accounts
type CryptoAccount struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Currency       string `json:"currency"`
	Balance        string `json:"balance"`
	PendingBalance string `json:"pending_balance"`
}

type cryptoAccountsResponse struct {
	CryptoAccounts []CryptoAccount `json:"crypto-accounts"`
}

type orderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	ExecutedQty   string `json:"executedQty"`
	TransactTime  int64  `json:"transactTime"`
}

// OpenOrder запись /openapi/v1/openOrders
type OpenOrder struct {
	OrderID int64  `json:"orderId"`
	Symbol  string `json:"symbol"`
	Side    string `json:"side"`
	Type    string `json:"type"`
	Price   string `json:"price"`
	OrigQty string `json:"origQty"`
	Status  string `json:"status"`
	Time    int64  `json:"time"`
}

// TradeFee комиссии символа из /openapi/v1/asset/tradeFee
type TradeFee struct {
	Symbol          string `json:"symbol"`
	MakerCommission string `json:"makerCommission"`
	TakerCommission string `json:"takerCommission"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// ========== Публичные эндпоинты ==========

// Ping проверяет доступность биржи
func (c *CoinsClient) Ping(ctx context.Context) error {
	var out struct{}
	return c.getWithRetry(ctx, "/openapi/v1/ping", nil, false, &out)
}

// ServerTime возвращает время сервера биржи (мс с эпохи)
func (c *CoinsClient) ServerTime(ctx context.Context) (int64, error) {
	var out serverTimeResponse
	if err := c.getWithRetry(ctx, "/openapi/v1/time", nil, false, &out); err != nil {
		return 0, err
	}
	if out.ServerTime == 0 {
		return 0, fmt.Errorf("%w: missing serverTime", domain.ErrMalformedResponse)
	}
	return out.ServerTime, nil
}

// ExchangeInfo возвращает торговые правила биржи
func (c *CoinsClient) ExchangeInfo(ctx context.Context, symbol string) (*ExchangeInfo, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	var out ExchangeInfo
	if err := c.getWithRetry(ctx, "/openapi/v1/exchangeInfo", params, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SymbolInfo возвращает торговые правила одного символа
func (c *CoinsClient) SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	info, err := c.ExchangeInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}
	for _, s := range info.Symbols {
		if s.Symbol == symbol {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("symbol %s: %w", symbol, domain.ErrNotFound)
}

// GetPrice получает текущую цену символа
func (c *CoinsClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var out tickerPriceResponse
	if err := c.getWithRetry(ctx, "/openapi/quote/v1/ticker/price", params, false, &out); err != nil {
		return 0, err
	}
	if out.Price == "" {
		return 0, fmt.Errorf("%w: no price for symbol %s", domain.ErrMalformedResponse, symbol)
	}
	price, err := strconv.ParseFloat(out.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price for %s: %w", symbol, err)
	}
	return price, nil
}

// Klines возвращает исторические свечи, от старых к новым, не более limit
func (c *CoinsClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	if limit <= 0 || limit > domain.KlineLimitMax {
		limit = domain.KlineLimitMax
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	var raw [][]interface{}
	if err := c.getWithRetry(ctx, "/openapi/quote/v1/klines", params, false, &raw); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(raw))
	for _, k := range raw {
		candle, err := parseKline(k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// parseKline разбирает одну свечу формата
// [openTime, open, high, low, close, volume, ...]
func parseKline(k []interface{}) (domain.Candle, error) {
	if len(k) < 6 {
		return domain.Candle{}, fmt.Errorf("%w: kline has %d fields", domain.ErrMalformedResponse, len(k))
	}
	openTime, ok := k[0].(float64)
	if !ok {
		return domain.Candle{}, fmt.Errorf("%w: kline open time", domain.ErrMalformedResponse)
	}
	closePrice, err := klineField(k[4])
	if err != nil {
		return domain.Candle{}, fmt.Errorf("%w: kline close price", domain.ErrMalformedResponse)
	}
	volume, err := klineField(k[5])
	if err != nil {
		return domain.Candle{}, fmt.Errorf("%w: kline volume", domain.ErrMalformedResponse)
	}
	return domain.Candle{
		OpenTime: time.UnixMilli(int64(openTime)),
		Close:    closePrice,
		Volume:   volume,
	}, nil
}

func klineField(v interface{}) (float64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseFloat(x, 64)
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("unexpected kline field type %T", v)
	}
}

// ========== Подписанные эндпоинты ==========

// AccountInfo возвращает информацию об аккаунте
func (c *CoinsClient) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	var out AccountInfo
	if err := c.getWithRetry(ctx, "/openapi/v1/account", nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBalance возвращает баланс одного актива.
// Если актив не найден в аккаунте, возвращает domain.ErrNotFound.
func (c *CoinsClient) GetBalance(ctx context.Context, asset string) (domain.Balance, error) {
	account, err := c.AccountInfo(ctx)
	if err != nil {
		return domain.Balance{}, err
	}
	for _, b := range account.Balances {
		if b.Asset != asset {
			continue
		}
		return parseBalance(b.Asset, b.Free, b.Locked)
	}
	return domain.Balance{}, fmt.Errorf("asset %s: %w", asset, domain.ErrNotFound)
}

// Balances возвращает все активы с ненулевым суммарным балансом
func (c *CoinsClient) Balances(ctx context.Context) ([]domain.Balance, error) {
	account, err := c.AccountInfo(ctx)
	if err != nil {
		return nil, err
	}
	balances := make([]domain.Balance, 0, len(account.Balances))
	for _, b := range account.Balances {
		balance, err := parseBalance(b.Asset, b.Free, b.Locked)
		if err != nil {
			return nil, err
		}
		if balance.Total() > 0 {
			balances = append(balances, balance)
		}
	}
	return balances, nil
}

func parseBalance(asset, free, locked string) (domain.Balance, error) {
	f, err := strconv.ParseFloat(free, 64)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("failed to parse free balance for %s: %w", asset, err)
	}
	l, err := strconv.ParseFloat(locked, 64)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("failed to parse locked balance for %s: %w", asset, err)
	}
	return domain.Balance{Asset: asset, Free: f, Locked: l}, nil
}

// CryptoAccounts возвращает криптосчета, опционально по одной валюте
func (c *CoinsClient) CryptoAccounts(ctx context.Context, currency string) ([]CryptoAccount, error) {
	params := url.Values{}
	if currency != "" {
		params.Set("currency", currency)
	}
	var out cryptoAccountsResponse
	if err := c.getWithRetry(ctx, "/openapi/account/v3/crypto-accounts", params, true, &out); err != nil {
		return nil, err
	}
	return out.CryptoAccounts, nil
}

// OrderParams дополнительные параметры ордера
type OrderParams struct {
	Quantity      string // количество базового актива
	QuoteOrderQty string // сумма в котируемой валюте (для MARKET BUY)
	Price         string
	TimeInForce   string
}

// PlaceOrder размещает новый ордер.
// Единственная операция с необратимым внешним эффектом: у биржи нет
// клиентского ключа идемпотентности, поэтому ошибка никогда не ретраится
// автоматически — повтор может исполнить ордер дважды.
func (c *CoinsClient) PlaceOrder(ctx context.Context, symbol, side, orderType string, p OrderParams) (*domain.OrderAck, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", orderType)
	if p.Quantity != "" {
		params.Set("quantity", p.Quantity)
	}
	if p.QuoteOrderQty != "" {
		params.Set("quoteOrderQty", p.QuoteOrderQty)
	}
	if p.Price != "" {
		params.Set("price", p.Price)
	}
	if p.TimeInForce != "" {
		params.Set("timeInForce", p.TimeInForce)
	}

	var out orderResponse
	if err := c.do(ctx, http.MethodPost, "/openapi/v1/order", params, true, &out); err != nil {
		return nil, err
	}
	if out.OrderID == 0 {
		return nil, fmt.Errorf("%w: missing orderId", domain.ErrMalformedResponse)
	}

	executed := 0.0
	if out.ExecutedQty != "" {
		executed, _ = strconv.ParseFloat(out.ExecutedQty, 64)
	}
	return &domain.OrderAck{
		OrderID:       out.OrderID,
		ClientOrderID: out.ClientOrderID,
		Symbol:        out.Symbol,
		Side:          out.Side,
		Type:          out.Type,
		Status:        out.Status,
		ExecutedQty:   executed,
		CreatedAt:     time.UnixMilli(out.TransactTime),
	}, nil
}

// OpenOrders возвращает активные ордера, опционально по одному символу
func (c *CoinsClient) OpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	var out []OpenOrder
	if err := c.getWithRetry(ctx, "/openapi/v1/openOrders", params, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder возвращает статус ордера
func (c *CoinsClient) GetOrder(ctx context.Context, symbol string, orderID int64) (*OpenOrder, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))
	var out OpenOrder
	if err := c.getWithRetry(ctx, "/openapi/v1/order", params, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelOrder отменяет активный ордер
func (c *CoinsClient) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))
	var out orderResponse
	return c.do(ctx, http.MethodDelete, "/openapi/v1/order", params, true, &out)
}

// TradeFee возвращает комиссии символа.
// Этот эндпоинт использует header-режим подписи (X-COINS-TIMESTAMP / X-COINS-SIGN).
func (c *CoinsClient) TradeFee(ctx context.Context, symbol string) ([]TradeFee, error) {
	path := "/openapi/v1/asset/tradeFee?symbol=" + url.QueryEscape(symbol)

	var out []TradeFee
	err := c.withRetry(ctx, readAttempts, func() error {
		return c.doHeaderSigned(ctx, http.MethodGet, path, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ========== Транспорт ==========

// getWithRetry выполняет идемпотентный GET с ограниченным числом повторов
func (c *CoinsClient) getWithRetry(ctx context.Context, endpoint string, params url.Values, signed bool, out interface{}) error {
	return c.withRetry(ctx, readAttempts, func() error {
		return c.do(ctx, http.MethodGet, endpoint, params, signed, out)
	})
}

// withRetry повторяет fn до attempts раз с растущей паузой и джиттером.
// Только для чтения: ордера через этот путь не ходят.
func (c *CoinsClient) withRetry(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		sleep := time.Duration(500*(1<<i))*time.Millisecond + time.Duration(rand.Intn(250))*time.Millisecond
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// do выполняет один HTTP запрос к бирже
func (c *CoinsClient) do(ctx context.Context, method, endpoint string, params url.Values, signed bool, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("recvWindow", c.recvWindow)
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	}

	query := canonicalQuery(params)
	if signed {
		// Подпись всегда добавляется последним параметром и никогда
		// не входит в собственную подписываемую строку
		query += "&signature=" + SignQuery(c.secretKey, params)
	}

	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, strings.NewReader(query))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		target := c.baseURL + endpoint
		if query != "" {
			target += "?" + query
		}
		req, err = http.NewRequestWithContext(ctx, method, target, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-COINS-APIKEY", c.apiKey)

	return c.send(req, out)
}

// doHeaderSigned выполняет запрос с подписью в заголовках
func (c *CoinsClient) doHeaderSigned(ctx context.Context, method, path string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signature := SignHeader(c.secretKey, timestamp, method, path)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-COINS-APIKEY", c.apiKey)
	req.Header.Set("X-COINS-TIMESTAMP", timestamp)
	req.Header.Set("X-COINS-SIGN", signature)
	req.Header.Set("Content-Type", "application/json")

	return c.send(req, out)
}

// send отправляет запрос и декодирует ответ
func (c *CoinsClient) send(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			if resp.StatusCode == http.StatusUnauthorized {
				return fmt.Errorf("%w: %s (code %d)", domain.ErrUnauthorized, apiErr.Msg, apiErr.Code)
			}
			return fmt.Errorf("%w: %s (code %d)", domain.ErrExchangeAPI, apiErr.Msg, apiErr.Code)
		}
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrExchangeAPI, resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
