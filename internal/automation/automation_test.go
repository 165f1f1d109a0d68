package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/impactgen/internal/config"
	"github.com/san-kum/impactgen/internal/scenario"
	"github.com/san-kum/impactgen/internal/session"
	"github.com/san-kum/impactgen/internal/session/sessiontest"
	"github.com/san-kum/impactgen/internal/storage"
)

func crashFeed(vid string, tick int) session.Sensors {
	s := session.Sensors{Time: float64(tick) / 60}
	if tick < 60 {
		s.Airspeed = 10
	}
	if vid == "vehicle_a" && tick >= 40 {
		s.Damage = 20
	}
	return s
}

const baseConfig = `
seed: 3
spawn_settle_ticks: 10
sequencer:
  settle_delay: 0.5
`

const campaignYAML = `
name: smoke
description: one pole batch and one tbone batch
steps:
  - name: pole
    config: base.yaml
    categories: [pole]
    max_trials: 2
  - name: tbone-seeded
    output: tbone
    config: base.yaml
    categories: [tbone]
    seed: 42
    max_trials: 1
`

func writeCampaign(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(baseConfig), 0644))
	path := filepath.Join(dir, "campaign.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadCampaign(t *testing.T) {
	c, err := LoadCampaign(writeCampaign(t, campaignYAML))
	require.NoError(t, err)
	assert.Equal(t, "smoke", c.Name)
	require.Len(t, c.Steps, 2)
	assert.Equal(t, "tbone", c.Steps[1].dir())

	cfg, err := c.Resolve(c.Steps[1])
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, []string{scenario.TBone}, cfg.Categories)
	assert.Equal(t, 10, cfg.SpawnSettleTicks)

	cfg, err = c.Resolve(c.Steps[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cfg.Seed, "base file seed kept")
}

func TestResolve_ExplicitZeroOverrides(t *testing.T) {
	dir := t.TempDir()
	base := "seed: 3\nmax_trials: 9\nfull_coverage: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(base), 0644))
	path := filepath.Join(dir, "campaign.yaml")
	body := "steps:\n  - name: zero\n    config: base.yaml\n    seed: 0\n    max_trials: 0\n    full_coverage: false\n  - name: kept\n    config: base.yaml\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	c, err := LoadCampaign(path)
	require.NoError(t, err)

	cfg, err := c.Resolve(c.Steps[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cfg.Seed)
	assert.Equal(t, 0, cfg.MaxTrials)
	assert.False(t, cfg.FullCoverage)

	cfg, err = c.Resolve(c.Steps[1])
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cfg.Seed)
	assert.Equal(t, 9, cfg.MaxTrials)
	assert.True(t, cfg.FullCoverage)
}

func TestLoadCampaign_Invalid(t *testing.T) {
	_, err := LoadCampaign(writeCampaign(t, "name: empty\n"))
	assert.ErrorIs(t, err, ErrInvalidCampaign)

	_, err = LoadCampaign(writeCampaign(t, "steps:\n  - name: a\n  - output: a\n"))
	assert.ErrorIs(t, err, ErrInvalidCampaign)

	_, err = LoadCampaign(writeCampaign(t, "steps:\n  - categories: [pole]\n"))
	assert.ErrorIs(t, err, ErrInvalidCampaign)

	_, err = LoadCampaign(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestResolve_InvalidOverride(t *testing.T) {
	c, err := LoadCampaign(writeCampaign(t, "steps:\n  - name: x\n    categories: [rollover]\n"))
	require.NoError(t, err)
	_, err = c.Resolve(c.Steps[0])
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRunCampaign(t *testing.T) {
	c, err := LoadCampaign(writeCampaign(t, campaignYAML))
	require.NoError(t, err)

	var fakes []*sessiontest.Fake
	factory := func(cfg *config.Config) session.Session {
		f := sessiontest.New(crashFeed)
		fakes = append(fakes, f)
		return f
	}

	out := t.TempDir()
	sums, err := RunCampaign(context.Background(), c, out, factory)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, 2, sums[0].Trials)
	assert.Equal(t, 1, sums[1].Trials)

	require.Len(t, fakes, 2)
	for _, f := range fakes {
		assert.Equal(t, 1, f.Closed())
	}

	pole, err := storage.New(filepath.Join(out, "pole")).List()
	require.NoError(t, err)
	assert.Len(t, pole, 2)
	tbone, err := storage.New(filepath.Join(out, "tbone")).List()
	require.NoError(t, err)
	require.Len(t, tbone, 1)
	assert.Equal(t, scenario.TBone, tbone[0].Category)
}

func TestRunCampaign_StopsOnFailure(t *testing.T) {
	c, err := LoadCampaign(writeCampaign(t, campaignYAML))
	require.NoError(t, err)

	calls := 0
	factory := func(cfg *config.Config) session.Session {
		calls++
		f := sessiontest.New(crashFeed)
		f.Fail = map[string]error{"Open": assert.AnError}
		return f
	}

	sums, err := RunCampaign(context.Background(), c, t.TempDir(), factory)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
	require.Len(t, sums, 1, "the failed step still reports its summary")
	assert.Zero(t, sums[0].Trials)
	assert.Equal(t, 1, calls)
}
