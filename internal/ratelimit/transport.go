package ratelimit

import (
	"net/http"
)

// Transport gates outbound HTTP requests through a Limiter before dispatch.
// A denied request never reaches Base and is not recorded.
type Transport struct {
	Limiter *Limiter
	// Base is the underlying transport; http.DefaultTransport if nil
	Base http.RoundTripper
}

// NewTransport wraps base with limiter
func NewTransport(limiter *Limiter, base http.RoundTripper) *Transport {
	return &Transport{Limiter: limiter, Base: base}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	decision := t.Limiter.CanMakeRequest()
	if !decision.Allowed {
		// RoundTripper обязан закрыть тело запроса даже при ошибке
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, &LimitError{Window: decision.Window, RetryAfter: decision.RetryAfter}
	}

	// Записываем запрос, который действительно отправляется
	t.Limiter.RecordRequest()

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
