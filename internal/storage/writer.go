package storage

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// Header is the column layout of every trial CSV.
var Header = []string{"time", "airspeed", "gx", "gy", "gz", "damage", "crash_flag"}

// Row is one logged sample of one vehicle.
type Row struct {
	Time     float64
	Airspeed float64
	GX       float64
	GY       float64
	GZ       float64
	Damage   float64
	Crash    bool
}

func (r Row) record() []string {
	flag := "0"
	if r.Crash {
		flag = "1"
	}
	return []string{
		formatFloat(r.Time),
		formatFloat(r.Airspeed),
		formatFloat(r.GX),
		formatFloat(r.GY),
		formatFloat(r.GZ),
		strconv.FormatInt(int64(math.Round(r.Damage)), 10),
		flag,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// TrialWriter appends rows to one vehicle's CSV artifact.
type TrialWriter struct {
	path   string
	file   *os.File
	w      *csv.Writer
	rows   int
	closed bool
}

// Create opens path for writing, creating parent directories on demand.
func Create(path string) (*TrialWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &ArtifactError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &ArtifactError{Op: "create", Path: path, Err: err}
	}
	return &TrialWriter{path: path, file: f, w: csv.NewWriter(f)}, nil
}

func (t *TrialWriter) Path() string { return t.path }

func (t *TrialWriter) Rows() int { return t.rows }

func (t *TrialWriter) WriteHeader() error {
	if err := t.w.Write(Header); err != nil {
		return &ArtifactError{Op: "write", Path: t.path, Err: err}
	}
	return nil
}

func (t *TrialWriter) WriteRow(r Row) error {
	if t.closed {
		return &ArtifactError{Op: "write", Path: t.path, Err: os.ErrClosed}
	}
	if err := t.w.Write(r.record()); err != nil {
		return &ArtifactError{Op: "write", Path: t.path, Err: err}
	}
	t.rows++
	return nil
}

// Close flushes and closes the file. Calling it again is a no-op.
func (t *TrialWriter) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	t.w.Flush()
	flushErr := t.w.Error()
	closeErr := t.file.Close()
	if flushErr != nil {
		return &ArtifactError{Op: "flush", Path: t.path, Err: flushErr}
	}
	if closeErr != nil {
		return &ArtifactError{Op: "close", Path: t.path, Err: closeErr}
	}
	return nil
}
