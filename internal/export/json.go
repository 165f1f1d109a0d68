// Package export bundles recorded trials and their crash metrics into a
// single JSON document.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/impactgen/internal/metrics"
	"github.com/san-kum/impactgen/internal/storage"
)

var log = logrus.WithField("module", "export")

type Trial struct {
	storage.TrialMeta
	// Metrics holds one figure set per recorded vehicle file, keyed by file name.
	Metrics map[string]map[string]float64 `json:"metrics"`
}

type ExportData struct {
	BaseDir string  `json:"base_dir"`
	Count   int     `json:"count"`
	Trials  []Trial `json:"trials"`
}

// Collect loads every trial under st and analyzes its CSV files with up to
// workers goroutines. Trials without files are included with empty metrics.
func Collect(ctx context.Context, st *storage.Store, workers int) (*ExportData, error) {
	metas, err := st.List()
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	trials := make([]Trial, len(metas))
	errs := make([]error, len(metas))
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i, meta := range metas {
		wg.Add(1)
		go func(idx int, meta storage.TrialMeta) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[idx] = err
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}
			defer func() { <-sem }()

			trials[idx], errs[idx] = analyze(meta)
		}(i, meta)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return &ExportData{
		BaseDir: st.BaseDir(),
		Count:   len(trials),
		Trials:  trials,
	}, nil
}

func analyze(meta storage.TrialMeta) (Trial, error) {
	t := Trial{TrialMeta: meta, Metrics: make(map[string]map[string]float64, len(meta.Files))}
	for _, path := range meta.Files {
		s, err := storage.LoadSeries(path)
		if err != nil {
			return t, fmt.Errorf("trial %s: %w", meta.ID, err)
		}
		t.Metrics[filepath.Base(path)] = metrics.Analyze(s)
	}
	log.Debugf("analyzed %s (%d files)", meta.ID, len(meta.Files))
	return t, nil
}

// WriteJSON writes data to path, or to stdout when path is "" or "-".
func WriteJSON(path string, data *ExportData) error {
	if path == "" || path == "-" {
		return encode(os.Stdout, data)
	}

	file, err := os.Create(path)
	if err != nil {
		return &storage.ArtifactError{Op: "create", Path: path, Err: err}
	}
	defer file.Close()

	return encode(file, data)
}

func encode(w io.Writer, data *ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
