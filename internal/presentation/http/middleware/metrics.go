package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

// EndpointCounters holds the request counters for one route.
type EndpointCounters struct {
	Requests  int64 `json:"requests"`
	Successes int64 `json:"successes"`
	Errors    int64 `json:"errors"`
}

// MetricsRegistry accumulates per-endpoint request outcomes. A response
// below 400 counts as a success, everything else as an error.
type MetricsRegistry struct {
	mu        sync.Mutex
	endpoints map[string]*EndpointCounters
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{endpoints: make(map[string]*EndpointCounters)}
}

func (m *MetricsRegistry) record(endpoint string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.endpoints[endpoint]
	if !ok {
		c = &EndpointCounters{}
		m.endpoints[endpoint] = c
	}
	c.Requests++
	if status < 400 {
		c.Successes++
	} else {
		c.Errors++
	}
}

// Snapshot returns a copy of the counters keyed by "METHOD path".
func (m *MetricsRegistry) Snapshot() map[string]EndpointCounters {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]EndpointCounters, len(m.endpoints))
	for k, v := range m.endpoints {
		out[k] = *v
	}
	return out
}

// MetricsMiddleware records the outcome of every matched route into the
// registry. Unmatched routes are skipped so 404 noise does not pollute the
// counters.
func MetricsMiddleware(registry *MetricsRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			return
		}
		registry.record(c.Request.Method+" "+route, c.Writer.Status())
	}
}
