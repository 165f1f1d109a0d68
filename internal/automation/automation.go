// Package automation runs campaigns: scripted sequences of generation runs,
// each with its own config overrides and output directory.
package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/impactgen/internal/config"
	"github.com/san-kum/impactgen/internal/experiment"
	"github.com/san-kum/impactgen/internal/session"
	"github.com/san-kum/impactgen/internal/storage"
)

var log = logrus.WithField("module", "automation")

var ErrInvalidCampaign = errors.New("automation: invalid campaign")

// Campaign defines a scripted generation sequence.
type Campaign struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []CampaignStep `yaml:"steps"`

	dir string
}

// CampaignStep is one generation run. Unset fields keep the base config.
type CampaignStep struct {
	Name         string   `yaml:"name"`
	Config       string   `yaml:"config"` // relative to the campaign file
	Output       string   `yaml:"output"` // subdirectory, defaults to Name
	Categories   []string `yaml:"categories"`
	Seed         *uint64  `yaml:"seed"`
	MaxTrials    *int     `yaml:"max_trials"`
	FullCoverage *bool    `yaml:"full_coverage"`
}

func (s CampaignStep) dir() string {
	if s.Output != "" {
		return s.Output
	}
	return s.Name
}

// SessionFactory opens a fresh simulator session for a step.
type SessionFactory func(cfg *config.Config) session.Session

// LoadCampaign loads a campaign from a YAML file.
func LoadCampaign(path string) (*Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Campaign
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("automation: parse %s: %w", path, err)
	}
	c.dir = filepath.Dir(path)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Campaign) Validate() error {
	if len(c.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidCampaign)
	}
	dirs := lo.Map(c.Steps, func(s CampaignStep, _ int) string { return s.dir() })
	if lo.Contains(dirs, "") {
		return fmt.Errorf("%w: every step needs a name or output", ErrInvalidCampaign)
	}
	if dup := lo.FindDuplicates(dirs); len(dup) > 0 {
		return fmt.Errorf("%w: steps share output %v", ErrInvalidCampaign, dup)
	}
	return nil
}

// Resolve builds the step's config: its base file (or the defaults) with
// the step's overrides applied.
func (c *Campaign) Resolve(step CampaignStep) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if step.Config != "" {
		path := step.Config
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.dir, path)
		}
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if len(step.Categories) > 0 {
		cfg.Categories = step.Categories
	}
	if step.Seed != nil {
		cfg.Seed = *step.Seed
	}
	if step.MaxTrials != nil {
		cfg.MaxTrials = *step.MaxTrials
	}
	if step.FullCoverage != nil {
		cfg.FullCoverage = *step.FullCoverage
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RunCampaign executes every step in order, each into its own directory
// under outDir. It stops at the first failing step and returns the
// summaries collected so far.
func RunCampaign(ctx context.Context, c *Campaign, outDir string, newSession SessionFactory, observers ...experiment.Observer) ([]*experiment.Summary, error) {
	summaries := make([]*experiment.Summary, 0, len(c.Steps))

	for i, step := range c.Steps {
		log.Infof("step %d/%d: %s", i+1, len(c.Steps), step.dir())

		cfg, err := c.Resolve(step)
		if err != nil {
			return summaries, fmt.Errorf("step %d: %w", i+1, err)
		}

		exp := experiment.New(cfg, newSession(cfg), storage.New(filepath.Join(outDir, step.dir())))
		for _, o := range observers {
			exp.AddObserver(o)
		}

		sum, err := exp.Run(ctx)
		if sum != nil {
			summaries = append(summaries, sum)
		}
		if err != nil {
			return summaries, fmt.Errorf("step %d run: %w", i+1, err)
		}
	}

	return summaries, nil
}
