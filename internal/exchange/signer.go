package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// canonicalQuery сериализует параметры в каноническую строку запроса:
// ключи в лексикографическом порядке, значения URL-кодированы, "signature"
// всегда исключается. Та же строка используется и для подписи, и для отправки,
// поэтому кодирование при подписи и при передаче не может разойтись.
func canonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		for _, v := range params[k] {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}

// SignQuery подписывает канонизированную строку параметров.
// Детерминированная чистая функция: одинаковые параметры всегда дают
// одинаковую подпись независимо от порядка вставки.
func SignQuery(secretKey string, params url.Values) string {
	return signPayload(secretKey, canonicalQuery(params))
}

// SignHeader подписывает запрос в header-режиме: HMAC считается от
// timestamp + method + path (path включает query при его наличии).
// Используется эндпоинтами семейства asset (X-COINS-TIMESTAMP / X-COINS-SIGN).
func SignHeader(secretKey, timestamp, method, path string) string {
	return signPayload(secretKey, timestamp+method+path)
}

// signPayload считает HMAC-SHA256 и возвращает hex в нижнем регистре
func signPayload(secretKey, payload string) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
