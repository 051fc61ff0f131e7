package journal

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fabricbridge/internal/fabric"
	"fabricbridge/internal/gps"
)

// Journal records timestamped pose + share-outcome rows to CSV files
// with automatic rotation. Observability only: nothing reads it back.
type Journal struct {
	mu       sync.Mutex
	dir      string
	interval time.Duration
	enabled  bool
	log      *slog.Logger

	file   *os.File
	writer *csv.Writer
	lastTs time.Time
	rows   int
}

// Config holds journal configuration.
type Config struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Path       string `yaml:"path" json:"path"`
	IntervalMs int    `yaml:"interval_ms" json:"intervalMs"`
}

const maxRowsPerFile = 100_000 // Rotate after 100k rows (~27 hrs at 1 Hz)

var csvHeader = []string{
	"timestamp", "valid", "latitude", "longitude", "yaw_deg",
	"speed_kph", "satellites", "hdop",
	"last_share_ok", "last_share_reason", "last_share_at",
}

// New creates a new Journal.
func New(cfg Config, log *slog.Logger) *Journal {
	if cfg.Path == "" {
		cfg.Path = "/var/log/fabricbridge"
	}
	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	if interval < 100*time.Millisecond {
		interval = time.Second // Default 1 Hz
	}
	return &Journal{
		dir:      cfg.Path,
		interval: interval,
		enabled:  cfg.Enabled,
		log:      log,
	}
}

// SetEnabled allows toggling journaling at runtime.
func (j *Journal) SetEnabled(on bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.enabled = on
	if !on && j.file != nil {
		j.closeFile()
	}
}

// IsEnabled returns whether journaling is active.
func (j *Journal) IsEnabled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enabled
}

// Record writes a snapshot if the minimum interval has elapsed.
// outcome is the most recent share attempt and may be nil.
func (j *Journal) Record(pose *gps.Pose, outcome *fabric.Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.enabled || pose == nil {
		return
	}

	now := time.Now()
	if now.Sub(j.lastTs) < j.interval {
		return
	}
	j.lastTs = now

	if j.writer == nil || j.rows >= maxRowsPerFile {
		if err := j.rotateFile(now); err != nil {
			j.log.Error("journal rotate failed", "error", err)
			return
		}
	}

	row := buildRow(now, pose, outcome)
	if err := j.writer.Write(row); err != nil {
		j.log.Error("journal write failed", "error", err)
		return
	}
	j.writer.Flush()
	j.rows++
}

// Close flushes and closes the current journal file.
func (j *Journal) Close() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closeFile()
}

func (j *Journal) rotateFile(now time.Time) error {
	j.closeFile()

	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", j.dir, err)
	}

	filename := fmt.Sprintf("fabricbridge_%s.csv", now.Format("2006-01-02_150405"))
	path := filepath.Join(j.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	j.file = f
	j.writer = csv.NewWriter(f)
	j.rows = 0

	if err := j.writer.Write(csvHeader); err != nil {
		return err
	}
	j.writer.Flush()

	j.log.Info("journal opened", "path", path)
	return nil
}

func (j *Journal) closeFile() {
	if j.writer != nil {
		j.writer.Flush()
		j.writer = nil
	}
	if j.file != nil {
		j.file.Close()
		j.file = nil
	}
}

func buildRow(ts time.Time, p *gps.Pose, o *fabric.Outcome) []string {
	row := make([]string, len(csvHeader))

	row[0] = ts.Format(time.RFC3339Nano)
	row[1] = boolStr(p.Valid)
	row[2] = fmt.Sprintf("%.6f", p.Latitude)
	row[3] = fmt.Sprintf("%.6f", p.Longitude)
	row[4] = fmt.Sprintf("%.1f", p.YawDegrees)
	row[5] = fmt.Sprintf("%.1f", p.Speed)
	row[6] = fmt.Sprintf("%d", p.Satellites)
	row[7] = fmt.Sprintf("%.1f", p.HDOP)

	if o != nil {
		row[8] = boolStr(o.OK)
		row[9] = o.Reason
		row[10] = o.At.Format(time.RFC3339)
	}

	return row
}

func boolStr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
