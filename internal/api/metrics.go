package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Sessions      SessionMetrics   `json:"sessions"`
	MQTT          ConnMetrics      `json:"mqtt"`
	InfluxDB      ConnMetrics      `json:"influxdb"`
	Accounts      AccountMetrics   `json:"accounts"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// SessionMetrics describes live session channels.
type SessionMetrics struct {
	ConnectedClients  int `json:"connected_clients"`
	ConnectedAccounts int `json:"connected_accounts"`
	PendingTickets    int `json:"pending_tickets"`
}

// ConnMetrics reports whether an optional client is connected.
type ConnMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// AccountMetrics counts stored accounts.
type AccountMetrics struct {
	Total int `json:"total"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	Driver          string `json:"driver"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
}

// handleMetrics returns process and session statistics for admins.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Sessions: SessionMetrics{
			ConnectedClients:  s.hub.ClientCount(),
			ConnectedAccounts: s.hub.AccountCount(),
			PendingTickets:    s.tickets.Len(),
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = ConnMetrics{Enabled: true, Connected: s.mqtt.IsConnected()}
	}
	if s.influx != nil {
		metrics.InfluxDB = ConnMetrics{Enabled: true, Connected: s.influx.IsConnected()}
	}

	if n, err := s.store.Count(r.Context()); err == nil {
		metrics.Accounts.Total = n
	} else {
		s.logger.Warn("counting accounts for metrics failed", "error", err)
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			Driver:          s.db.Driver(),
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
