package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DBConnectionsOpen = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Total number of open database connections",
		},
	)

	DBConnectionsInUse = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_in_use",
			Help:      "Number of database connections currently in use",
		},
	)

	DBConnectionsIdle = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
	)
)

type poolStats struct {
	open  int
	inUse int
	idle  int
}

// DBCollector periodically copies connection pool statistics into gauges.
type DBCollector struct {
	stats    func() poolStats
	stopChan chan struct{}
}

func NewDBCollector(pool *pgxpool.Pool) *DBCollector {
	return newCollector(func() poolStats {
		stat := pool.Stat()
		return poolStats{
			open:  int(stat.TotalConns()),
			inUse: int(stat.AcquiredConns()),
			idle:  int(stat.IdleConns()),
		}
	})
}

func NewSQLDBCollector(db *sql.DB) *DBCollector {
	return newCollector(func() poolStats {
		stat := db.Stats()
		return poolStats{open: stat.OpenConnections, inUse: stat.InUse, idle: stat.Idle}
	})
}

func newCollector(stats func() poolStats) *DBCollector {
	return &DBCollector{stats: stats, stopChan: make(chan struct{})}
}

// Start collects at interval until ctx is done or Stop is called.
func (c *DBCollector) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *DBCollector) Stop() {
	close(c.stopChan)
}

func (c *DBCollector) collect() {
	stat := c.stats()
	DBConnectionsOpen.Set(float64(stat.open))
	DBConnectionsInUse.Set(float64(stat.inUse))
	DBConnectionsIdle.Set(float64(stat.idle))
}
