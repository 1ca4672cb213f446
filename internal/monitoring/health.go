package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/23skdu/longbow-testfloat/internal/logger"
	"github.com/23skdu/longbow-testfloat/internal/verify"
)

const Version = "1.0.0"

// maxFinished bounds the finished-run history kept for /status.
const maxFinished = 1000

// HealthStatus represents the health status of the process
type HealthStatus struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version"`
	Uptime    time.Duration `json:"uptime"`
	System    SystemInfo    `json:"system"`
	Active    []RunStatus   `json:"active"`
	Finished  []RunStatus   `json:"finished"`
	Alerts    []Alert       `json:"alerts"`
}

// SystemInfo contains system-level information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	MemoryMB     int    `json:"memory_mb"`
	MemoryUsedMB int    `json:"memory_used_mb"`
}

// RunStatus is the live view of one verification run.
type RunStatus struct {
	ID      string    `json:"id"`
	Op      string    `json:"op"`
	Mode    string    `json:"mode"`
	Started time.Time `json:"started"`
	// Total is -1 for runs that never exhaust.
	Total      int64  `json:"total"`
	Cases      int64  `json:"cases"`
	Errors     int64  `json:"errors"`
	Suppressed int64  `json:"suppressed"`
	Outcome    string `json:"outcome,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms,omitempty"`
}

// Alert represents a run that needs attention
type Alert struct {
	Level     string    `json:"level"` // warning, error
	Component string    `json:"component"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthMonitor tracks runs and serves their state over HTTP
type HealthMonitor struct {
	startTime time.Time
	server    *http.Server

	mu       sync.RWMutex
	active   map[string]*RunStatus
	finished []RunStatus
	alerts   []Alert
}

func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		startTime: time.Now(),
		active:    make(map[string]*RunStatus),
	}
}

// Handler returns the monitor's routes.
func (hm *HealthMonitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", hm.handleHealth)
	mux.HandleFunc("/healthz", hm.handleHealth) // Kubernetes compatibility
	mux.HandleFunc("/status", hm.handleDetailedStatus)
	mux.HandleFunc("/admin/alerts", hm.handleAlerts)
	mux.HandleFunc("/admin/clear-alerts", hm.handleClearAlerts)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start serves the monitor on addr until Stop is called.
func (hm *HealthMonitor) Start(addr string) error {
	hm.mu.Lock()
	hm.server = &http.Server{
		Addr:         addr,
		Handler:      hm.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	srv := hm.server
	hm.mu.Unlock()

	logger.Log.Info("Health monitor starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (hm *HealthMonitor) Stop(ctx context.Context) error {
	hm.mu.RLock()
	srv := hm.server
	hm.mu.RUnlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// Track returns a reporter that keeps the run's status current.
func (hm *HealthMonitor) Track(runID, mode string) verify.Reporter {
	return &tracker{hm: hm, id: runID, mode: mode}
}

func (hm *HealthMonitor) AddAlert(level, component, message string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.addAlertLocked(level, component, message)
}

func (hm *HealthMonitor) addAlertLocked(level, component, message string) {
	hm.alerts = append(hm.alerts, Alert{
		Level:     level,
		Component: component,
		Message:   message,
		Timestamp: time.Now(),
	})

	// Keep only last 100 alerts
	if len(hm.alerts) > 100 {
		hm.alerts = hm.alerts[1:]
	}

	logger.Log.Warn("ALERT", "level", level, "component", component, "message", message)
}

type tracker struct {
	hm   *HealthMonitor
	id   string
	mode string
}

func (t *tracker) Start(op string, total int64) {
	t.hm.mu.Lock()
	defer t.hm.mu.Unlock()
	t.hm.active[t.id] = &RunStatus{
		ID:      t.id,
		Op:      op,
		Mode:    t.mode,
		Started: time.Now(),
		Total:   total,
	}
}

func (t *tracker) Progress(_ string, cases int64) {
	t.hm.mu.Lock()
	defer t.hm.mu.Unlock()
	if rs, ok := t.hm.active[t.id]; ok {
		rs.Cases = cases
	}
}

func (t *tracker) Mismatch(verify.ErrorRecord) {
	t.hm.mu.Lock()
	defer t.hm.mu.Unlock()
	if rs, ok := t.hm.active[t.id]; ok {
		rs.Errors++
	}
}

func (t *tracker) Finish(s verify.Stats) {
	t.hm.mu.Lock()
	defer t.hm.mu.Unlock()

	rs, ok := t.hm.active[t.id]
	if !ok {
		rs = &RunStatus{ID: t.id, Op: s.Op, Mode: t.mode, Started: time.Now().Add(-s.Elapsed)}
	}
	delete(t.hm.active, t.id)

	rs.Cases = s.Cases
	rs.Errors = s.Errors
	rs.Suppressed = s.Suppressed
	rs.Outcome = s.Outcome.String()
	rs.ElapsedMs = s.Elapsed.Milliseconds()
	t.hm.finished = append(t.hm.finished, *rs)
	if len(t.hm.finished) > maxFinished {
		t.hm.finished = t.hm.finished[1:]
	}

	switch {
	case s.Errors > 0:
		t.hm.addAlertLocked("error", s.Op,
			fmt.Sprintf("%d errors in %s (%s)", s.Errors, s.Op, t.mode))
	case s.Outcome == verify.Canceled:
		t.hm.addAlertLocked("warning", s.Op,
			fmt.Sprintf("%s (%s) canceled after %d cases", s.Op, t.mode, s.Cases))
	}
}

// HTTP Handlers

func (hm *HealthMonitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := hm.getHealthStatus()

	w.Header().Set("Content-Type", "application/json")
	if status.Status == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":    status.Status,
		"timestamp": status.Timestamp.Format(time.RFC3339),
	})
}

func (hm *HealthMonitor) handleDetailedStatus(w http.ResponseWriter, r *http.Request) {
	status := hm.getHealthStatus()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (hm *HealthMonitor) handleAlerts(w http.ResponseWriter, r *http.Request) {
	hm.mu.RLock()
	alerts := slices.Clone(hm.alerts)
	hm.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}

func (hm *HealthMonitor) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hm.mu.Lock()
	hm.alerts = hm.alerts[:0]
	hm.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "alerts cleared"})
}

// Health status calculation

// getHealthStatus reports degraded while any error alert is outstanding.
func (hm *HealthMonitor) getHealthStatus() HealthStatus {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := "healthy"
	for _, alert := range hm.alerts {
		if alert.Level == "error" {
			status = "degraded"
			break
		}
	}

	active := make([]RunStatus, 0, len(hm.active))
	for _, rs := range hm.active {
		active = append(active, *rs)
	}
	slices.SortFunc(active, func(a, b RunStatus) int { return a.Started.Compare(b.Started) })

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(hm.startTime),
		System:    getSystemInfo(),
		Active:    active,
		Finished:  append([]RunStatus{}, hm.finished...),
		Alerts:    append([]Alert{}, hm.alerts...),
	}
}

func getSystemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		MemoryMB:     int(m.Sys / 1024 / 1024),
		MemoryUsedMB: int(m.Alloc / 1024 / 1024),
	}
}
