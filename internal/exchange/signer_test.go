package exchange

import (
	"net/url"
	"testing"
)

func TestSignQuery_Deterministic(t *testing.T) {
	// Одинаковые параметры с разным порядком вставки дают одну подпись
	a := url.Values{}
	a.Set("symbol", "SOLPHP")
	a.Set("timestamp", "1700000000000")
	a.Set("recvWindow", "5000")
	a.Set("side", "BUY")

	b := url.Values{}
	b.Set("side", "BUY")
	b.Set("recvWindow", "5000")
	b.Set("symbol", "SOLPHP")
	b.Set("timestamp", "1700000000000")

	sigA := SignQuery("secret", a)
	sigB := SignQuery("secret", b)

	if sigA != sigB {
		t.Errorf("signatures differ for equal params: %s vs %s", sigA, sigB)
	}
	if sigA != SignQuery("secret", a) {
		t.Error("repeated signing of the same params is not reproducible")
	}
}

func TestSignQuery_ExcludesSignature(t *testing.T) {
	params := url.Values{}
	params.Set("symbol", "SOLPHP")
	params.Set("timestamp", "1700000000000")

	withSig := url.Values{}
	withSig.Set("symbol", "SOLPHP")
	withSig.Set("timestamp", "1700000000000")
	withSig.Set("signature", "deadbeef")

	if SignQuery("secret", params) != SignQuery("secret", withSig) {
		t.Error("pre-existing signature key must not affect the signature")
	}
}

func TestSignQuery_KnownVector(t *testing.T) {
	params := url.Values{}
	params.Set("b", "2")
	params.Set("a", "1")

	// HMAC-SHA256("secret", "a=1&b=2")
	want := signPayload("secret", "a=1&b=2")
	if got := SignQuery("secret", params); got != want {
		t.Errorf("SignQuery() = %s, want %s", got, want)
	}
}

func TestCanonicalQuery(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
		want   string
	}{
		{
			"sorted keys",
			url.Values{"timestamp": {"123"}, "recvWindow": {"5000"}, "symbol": {"SOLPHP"}},
			"recvWindow=5000&symbol=SOLPHP&timestamp=123",
		},
		{
			"signature excluded",
			url.Values{"symbol": {"SOLPHP"}, "signature": {"abc"}},
			"symbol=SOLPHP",
		},
		{
			"values url-encoded",
			url.Values{"note": {"a&b=c"}, "q": {"ü"}},
			"note=a%26b%3Dc&q=%C3%BC",
		},
		{
			"empty",
			url.Values{},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canonicalQuery(tt.params); got != tt.want {
				t.Errorf("canonicalQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSignHeader(t *testing.T) {
	ts := "1700000000000"
	path := "/openapi/v1/asset/tradeFee?symbol=SOLPHP"

	want := signPayload("secret", ts+"GET"+path)
	if got := SignHeader("secret", ts, "GET", path); got != want {
		t.Errorf("SignHeader() = %s, want %s", got, want)
	}

	// Другой метод — другая подпись
	if SignHeader("secret", ts, "POST", path) == want {
		t.Error("method must be part of the signed payload")
	}
}
