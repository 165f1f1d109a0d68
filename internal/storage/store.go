package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return &ArtifactError{Op: "mkdir", Path: s.baseDir, Err: err}
	}
	return nil
}

func (s *Store) BaseDir() string { return s.baseDir }

// TrialMeta describes one trial and where its artifacts live.
type TrialMeta struct {
	ID          string            `json:"id"`
	Category    string            `json:"category"`
	Timestamp   time.Time         `json:"timestamp"`
	Setting     []string          `json:"setting"`
	Flip        bool              `json:"flip"`
	Offset      float64           `json:"offset"`
	Angle       float64           `json:"angle"`
	Throttle    float64           `json:"throttle"`
	TargetSpeed float64           `json:"target_speed"`
	Parts       map[string]string `json:"parts"`
	Vehicles    []string          `json:"vehicles"`
	Files       []string          `json:"files"`
	Ticks       int               `json:"ticks"`
	Samples     int               `json:"samples"`
	Impacted    bool              `json:"impacted"`
	ImpactTime  float64           `json:"impact_time"`
	Attempts    int               `json:"attempts"`
	Error       string            `json:"error,omitempty"`
}

// Dir is the directory holding a trial's artifacts:
// <base>/<category>/speed_<kmh>/angle_<deg>.
func (s *Store) Dir(meta TrialMeta) string {
	return filepath.Join(s.baseDir,
		meta.Category,
		fmt.Sprintf("speed_%03d", int(math.Round(meta.TargetSpeed))),
		"angle_"+strconv.FormatFloat(meta.Angle, 'f', 1, 64),
	)
}

// CSVPath is where one vehicle's samples of a trial are written.
func (s *Store) CSVPath(meta TrialMeta, vehicle string) string {
	return filepath.Join(s.Dir(meta), fmt.Sprintf("%s_%s.csv", meta.ID, vehicle))
}

func (s *Store) MetaPath(meta TrialMeta) string {
	return filepath.Join(s.Dir(meta), meta.ID+".json")
}

func (s *Store) SaveMeta(meta TrialMeta) error {
	path := s.MetaPath(meta)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &ArtifactError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
	}

	f, err := os.Create(path)
	if err != nil {
		return &ArtifactError{Op: "create", Path: path, Err: err}
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return &ArtifactError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// List walks the store and returns every trial's metadata, oldest first.
func (s *Store) List() ([]TrialMeta, error) {
	trials := make([]TrialMeta, 0)

	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var meta TrialMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil
		}
		trials = append(trials, meta)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return []TrialMeta{}, nil
		}
		return nil, &ArtifactError{Op: "walk", Path: s.baseDir, Err: err}
	}

	sort.Slice(trials, func(i, j int) bool {
		if trials[i].Timestamp.Equal(trials[j].Timestamp) {
			return trials[i].ID < trials[j].ID
		}
		return trials[i].Timestamp.Before(trials[j].Timestamp)
	})
	return trials, nil
}

// Series is a trial CSV loaded column-wise.
type Series struct {
	Time     []float64
	Airspeed []float64
	GX       []float64
	GY       []float64
	GZ       []float64
	Damage   []float64
	Crash    []bool
}

func (s *Series) Len() int { return len(s.Time) }

// Row returns sample i as a Row.
func (s *Series) Row(i int) Row {
	return Row{
		Time:     s.Time[i],
		Airspeed: s.Airspeed[i],
		GX:       s.GX[i],
		GY:       s.GY[i],
		GZ:       s.GZ[i],
		Damage:   s.Damage[i],
		Crash:    s.Crash[i],
	}
}

// Column returns a numeric column by its header name.
func (s *Series) Column(name string) ([]float64, error) {
	switch name {
	case "time":
		return s.Time, nil
	case "airspeed":
		return s.Airspeed, nil
	case "gx":
		return s.GX, nil
	case "gy":
		return s.GY, nil
	case "gz":
		return s.GZ, nil
	case "damage":
		return s.Damage, nil
	}
	return nil, fmt.Errorf("unknown column: %s", name)
}

// LoadSeries reads a trial CSV. Rows that do not parse are skipped.
func LoadSeries(path string) (*Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ArtifactError{Op: "open", Path: path, Err: err}
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, &ArtifactError{Op: "read", Path: path, Err: err}
	}

	series := &Series{}
	if len(records) < 2 {
		return series, nil
	}

	for _, record := range records[1:] {
		if len(record) != len(Header) {
			continue
		}
		vals := make([]float64, 6)
		ok := true
		for j := 0; j < 6; j++ {
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				ok = false
				break
			}
			vals[j] = v
		}
		if !ok {
			continue
		}

		series.Time = append(series.Time, vals[0])
		series.Airspeed = append(series.Airspeed, vals[1])
		series.GX = append(series.GX, vals[2])
		series.GY = append(series.GY, vals[3])
		series.GZ = append(series.GZ, vals[4])
		series.Damage = append(series.Damage, vals[5])
		series.Crash = append(series.Crash, record[6] == "1" || record[6] == "true")
	}

	return series, nil
}
