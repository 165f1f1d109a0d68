package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMeta(id string) TrialMeta {
	return TrialMeta{
		ID:          id,
		Category:    "pole",
		Timestamp:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		TargetSpeed: 49.6,
		Angle:       -15,
		Parts:       map[string]string{"etk_bumper_F": "etk_bumper_F_sport"},
		Vehicles:    []string{"vehicle_a"},
	}
}

func TestTrialWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "trial.csv")

	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteRow(Row{Time: 0.016, Airspeed: 13.5, GX: 0.1, GY: -0.2, GZ: 9.81, Damage: 10.4}))
	require.NoError(t, w.WriteRow(Row{Time: 0.128, Airspeed: 2, Damage: 12.6, Crash: true}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close is a no-op")
	assert.Equal(t, 2, w.Rows())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "time,airspeed,gx,gy,gz,damage,crash_flag", lines[0])
	assert.Equal(t, "0.016,13.5,0.1,-0.2,9.81,10,0", lines[1])
	assert.Equal(t, "0.128,2,0,0,0,13,1", lines[2])
}

func TestTrialWriter_WriteAfterClose(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "trial.csv"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = w.WriteRow(Row{})
	assert.ErrorIs(t, err, ErrArtifactIO)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestCreate_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := Create(filepath.Join(blocker, "trial.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArtifactIO)

	var artifactErr *ArtifactError
	require.True(t, errors.As(err, &artifactErr))
	assert.Equal(t, "mkdir", artifactErr.Op)
}

func TestStorePaths(t *testing.T) {
	st := New("/out")
	meta := testMeta("pole_0001")

	assert.Equal(t, filepath.Join("/out", "pole", "speed_050", "angle_-15.0"), st.Dir(meta))
	assert.Equal(t, filepath.Join("/out", "pole", "speed_050", "angle_-15.0", "pole_0001_vehicle_a.csv"),
		st.CSVPath(meta, "vehicle_a"))
	assert.Equal(t, filepath.Join("/out", "pole", "speed_050", "angle_-15.0", "pole_0001.json"), st.MetaPath(meta))
}

func TestStoreSaveList(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	trials, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, trials)

	second := testMeta("pole_0002")
	second.Timestamp = second.Timestamp.Add(time.Minute)
	require.NoError(t, st.SaveMeta(second))
	require.NoError(t, st.SaveMeta(testMeta("pole_0001")))

	trials, err = st.List()
	require.NoError(t, err)
	require.Len(t, trials, 2)
	assert.Equal(t, "pole_0001", trials[0].ID)
	assert.Equal(t, "pole_0002", trials[1].ID)
	assert.Equal(t, "etk_bumper_F_sport", trials[0].Parts["etk_bumper_F"])
}

func TestStoreList_MissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "missing"))
	trials, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, trials)
}

func TestLoadSeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trial.csv")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader())
	for i := 0; i < 5; i++ {
		require.NoError(t, w.WriteRow(Row{Time: float64(i) * 0.1, Airspeed: float64(10 - i), Damage: float64(i * 3), Crash: i == 3}))
	}
	require.NoError(t, w.Close())

	series, err := LoadSeries(path)
	require.NoError(t, err)
	assert.Equal(t, 5, series.Len())
	assert.Equal(t, []float64{10, 9, 8, 7, 6}, series.Airspeed)
	assert.Equal(t, []bool{false, false, false, true, false}, series.Crash)

	col, err := series.Column("damage")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 6, 9, 12}, col)

	_, err = series.Column("nope")
	assert.Error(t, err)
}

func TestLoadSeries_Missing(t *testing.T) {
	_, err := LoadSeries(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, ErrArtifactIO)
}
