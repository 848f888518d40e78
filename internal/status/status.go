// Package status exposes the current run's engine.Stats as JSON over
// HTTP, repurposing the teacher's gin dependency: the teacher served a
// /status route for uptime/bot-count monitoring
// (internal/routes/status.go); this module has no file-streaming surface
// to monitor, so the route instead reports forwarding progress.
package status

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tgforward/internal/engine"
)

// Snapshot is the JSON body served at /status.
type Snapshot struct {
	Running       bool          `json:"running"`
	StartedAt     time.Time     `json:"started_at"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	Stats         engine.Stats  `json:"stats"`
}

// Reporter holds the most recently published run statistics, safe for
// concurrent reads from HTTP handlers and writes from the caller. The
// run command publishes Stats once, after Engine.Run returns; while a run
// is in progress the snapshot shows running=true with the previously
// published (initially zero) Stats.
type Reporter struct {
	mu        sync.RWMutex
	startedAt time.Time
	running   bool
	stats     engine.Stats
}

// NewReporter builds a Reporter whose uptime clock starts at startedAt.
func NewReporter(startedAt time.Time) *Reporter {
	return &Reporter{startedAt: startedAt}
}

// SetRunning flags whether a forwarding run is currently in progress.
func (r *Reporter) SetRunning(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = running
}

// Update publishes the latest Stats snapshot.
func (r *Reporter) Update(stats engine.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = stats
}

// Snapshot renders the current state for the HTTP handler.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		Running:       r.running,
		StartedAt:     r.startedAt,
		UptimeSeconds: time.Since(r.startedAt).Seconds(),
		Stats:         r.stats,
	}
}

// Router builds a minimal gin.Engine serving only GET /status, mirroring
// the teacher's getStatusRouter (cmd/fsb/run.go) shape: a router separate
// from any other HTTP surface, release-moded unless dev logging is on.
func Router(log *zap.Logger, dev bool, reporter *Reporter) *gin.Engine {
	if dev {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, reporter.Snapshot())
	})
	return r
}
