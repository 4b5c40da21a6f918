package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// hostSampleTimeout bounds the gopsutil calls in handleMetrics.
const hostSampleTimeout = 2 * time.Second

// bytesPerMB converts bytes to megabytes.
const bytesPerMB = 1024 * 1024

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Host          *HostMetrics     `json:"host,omitempty"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Sequences     SequenceMetrics  `json:"sequences"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// HostMetrics contains machine-level statistics.
type HostMetrics struct {
	CPUPercent        float64 `json:"cpu_percent"`
	MemoryTotalMB     float64 `json:"memory_total_mb"`
	MemoryUsedMB      float64 `json:"memory_used_mb"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
	PendingTickets   int `json:"pending_tickets"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Configured bool `json:"configured"`
	Connected  bool `json:"connected"`
}

// SequenceMetrics counts stored, loaded and running sequences.
type SequenceMetrics struct {
	Defined int `json:"defined"`
	Loaded  int `json:"loaded"`
	Running int `json:"running"`
	Targets int `json:"targets"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(memStats.TotalAlloc) / bytesPerMB,
			NumGC:         memStats.NumGC,
		},
		Host: s.hostMetrics(r.Context()),
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			PendingTickets:   s.tickets.pending(),
		},
		Sequences: SequenceMetrics{
			Defined: s.registry.Count(),
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{Configured: true, Connected: s.mqtt.IsConnected()}
	}

	if loaded, err := s.runner.Loaded(r.Context()); err == nil {
		metrics.Sequences.Loaded = len(loaded)
		for _, st := range loaded {
			if st.Running {
				metrics.Sequences.Running++
			}
		}
	}
	if s.directory != nil {
		metrics.Sequences.Targets = len(s.directory.Targets())
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

// hostMetrics samples CPU and memory usage. It returns nil when the
// platform supports neither reading.
func (s *Server) hostMetrics(ctx context.Context) *HostMetrics {
	ctx, cancel := context.WithTimeout(ctx, hostSampleTimeout)
	defer cancel()

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		s.logger.Debug("host memory read failed", "error", err)
		return nil
	}
	host := &HostMetrics{
		MemoryTotalMB:     float64(vm.Total) / bytesPerMB,
		MemoryUsedMB:      float64(vm.Used) / bytesPerMB,
		MemoryUsedPercent: vm.UsedPercent,
	}

	// Interval 0 compares against the previous call, so the first sample
	// after start-up reads as 0.
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		host.CPUPercent = pct[0]
	} else if err != nil {
		s.logger.Debug("host cpu read failed", "error", err)
	}
	return host
}
