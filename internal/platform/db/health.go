package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// Pinger is anything the record store health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 5 * time.Second

// HealthHandler reports whether the record store answers a ping. Pool
// statistics are included when the store is a pgx pool; a nil Pinger means
// records are kept in memory.
func HealthHandler(p Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if p == nil {
			return c.JSON(http.StatusOK, map[string]interface{}{
				"status": "healthy",
				"store":  "memory",
			})
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		body := map[string]interface{}{"store": "postgres"}
		err := p.Ping(ctx)
		if pool, ok := p.(*pgxpool.Pool); ok {
			stats := GetPoolStats(pool)
			stats.Healthy = err == nil
			body["pool"] = stats
		}

		if err != nil {
			body["status"] = "unhealthy"
			body["error"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		body["status"] = "healthy"
		return c.JSON(http.StatusOK, body)
	}
}
