package handler

import (
	"net/http"
	"sync"
	"time"

	"vending-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
)

type dependencyReport struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type healthReport struct {
	Status       string                      `json:"status"`
	Maintenance  bool                        `json:"maintenance"`
	Dependencies map[string]dependencyReport `json:"dependencies"`
}

// HealthCheck pings every dependency in parallel. A failing dependency
// turns the report degraded with 503; maintenance mode alone does not.
func HealthCheck(gate ports.MaintenanceGate, checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := healthReport{
			Status:       "healthy",
			Dependencies: make(map[string]dependencyReport, len(checkers)),
		}
		if gate != nil {
			report.Maintenance = gate.IsEnabled()
		}

		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, checker := range checkers {
			wg.Add(1)
			go func(hc ports.HealthChecker) {
				defer wg.Done()
				start := time.Now()
				err := hc.Ping(c.Request.Context())
				dep := dependencyReport{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
				if err != nil {
					dep.Status = "unhealthy"
					dep.Error = err.Error()
				}
				mu.Lock()
				report.Dependencies[hc.Name()] = dep
				if err != nil {
					report.Status = "degraded"
				}
				mu.Unlock()
			}(checker)
		}
		wg.Wait()

		code := http.StatusOK
		if report.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	}
}
