package customHttpClient

import (
	"net/http"
	"sync"

	"github.com/akolanti/PDFChat/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

var (
	once   sync.Once
	client *http.Client
)

// Get returns the process wide pooled client shared by the model SDKs.
// Outgoing requests carry the trace context of the incoming call.
func Get() *http.Client {
	once.Do(func() {
		client = &http.Client{
			Transport: otelhttp.NewTransport(customTransport),
			Timeout:   config.HttpClientTimeout,
		}
	})
	return client
}
