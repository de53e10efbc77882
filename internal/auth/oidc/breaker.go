package oidc

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/quillstash/hybridauth/internal/observability"
)

// providerBreaker shields the identity provider from request storms when
// it is unreachable. Only transport-level failures trip the breaker; an
// HTTP response of any status counts as a successful call, so rejected
// tokens never open the circuit.
type providerBreaker struct {
	cb     *gobreaker.CircuitBreaker
	logger observability.Logger
}

func newProviderBreaker(name string, logger observability.Logger) *providerBreaker {
	b := &providerBreaker{logger: logger}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("provider circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})

	return b
}

// Do executes the request through the breaker.
func (b *providerBreaker) Do(client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := b.cb.Execute(func() (interface{}, error) {
		return client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	return resp.(*http.Response), nil
}
