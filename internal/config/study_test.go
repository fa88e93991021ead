package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irt-tools/cat-service/internal/irt"
)

const sampleStudyYAML = `
name: Vocabulary CAT
model: 2PL
selection_criterion: max_info
min_items: 5
max_items: 30
se_threshold: 0.3
start_theta: 0.0
theta_min: -4.0
theta_max: 4.0
max_per_category:
  verbal: 10
demographics:
  - name: age
    prompt: How old are you?
    required: true
  - name: gender
    prompt: What is your gender?
    options: [female, male, diverse, prefer not to say]
locale: de
theme: hildesheim
storage:
  destination: webdav
  webdav_url: https://cloud.example.org/public.php/webdav
  share_token: abc123
`

func TestParseStudyConfig(t *testing.T) {
	cfg, err := ParseStudyConfig([]byte(sampleStudyYAML))
	require.NoError(t, err)

	assert.Equal(t, "Vocabulary CAT", cfg.Name)
	assert.Equal(t, irt.Model2PL, cfg.Model)
	assert.Equal(t, SelectionMaxInfo, cfg.SelectionCriterion)
	assert.Equal(t, 5, cfg.MinItems)
	assert.Equal(t, 30, cfg.MaxItems)
	assert.Equal(t, 0.3, cfg.SEThreshold)
	assert.Equal(t, map[string]int{"verbal": 10}, cfg.MaxPerCategory)
	assert.Equal(t, "de", cfg.Locale)
	assert.Equal(t, "hildesheim", cfg.Theme)
	assert.Equal(t, StorageWebDAV, cfg.Storage.Destination)

	require.Len(t, cfg.Demographics, 2)
	assert.True(t, cfg.Demographics[0].Required)
	assert.Len(t, cfg.Demographics[1].Options, 4)
}

func TestParseStudyConfig_InvalidYAML(t *testing.T) {
	_, err := ParseStudyConfig([]byte("items: [unbalanced"))
	assert.Error(t, err)
}

func TestLoadStudyConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleStudyYAML), 0o644))

	cfg, err := LoadStudyConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Vocabulary CAT", cfg.Name)
}

func TestLoadStudyConfig_MissingFile(t *testing.T) {
	_, err := LoadStudyConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestStudyConfig_ApplyDefaults(t *testing.T) {
	cfg := StudyConfig{
		Name:        "minimal",
		Model:       irt.Model1PL,
		MinItems:    1,
		MaxItems:    10,
		SEThreshold: 0.4,
	}
	cfg.ApplyDefaults()

	assert.Equal(t, SelectionMaxInfo, cfg.SelectionCriterion)
	assert.Equal(t, irt.DefaultThetaRange.Min, cfg.ThetaMin)
	assert.Equal(t, irt.DefaultThetaRange.Max, cfg.ThetaMax)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, "light", cfg.Theme)
	assert.Equal(t, StorageLocal, cfg.Storage.Destination)
}

func TestStudyConfig_CheckRules(t *testing.T) {
	valid := func() StudyConfig {
		cfg := StudyConfig{
			Name:        "rules",
			Model:       irt.Model2PL,
			MinItems:    5,
			MaxItems:    20,
			SEThreshold: 0.3,
			StartTheta:  0,
			ThetaMin:    -4,
			ThetaMax:    4,
		}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*StudyConfig)
		wantErr bool
	}{
		{"valid config", func(*StudyConfig) {}, false},
		{"min above max", func(c *StudyConfig) { c.MinItems = 30 }, true},
		{"inverted theta range", func(c *StudyConfig) { c.ThetaMin = 4; c.ThetaMax = -4 }, true},
		{"start theta below range", func(c *StudyConfig) { c.StartTheta = -10 }, true},
		{"start theta above range", func(c *StudyConfig) { c.StartTheta = 10 }, true},
		{"webdav without url", func(c *StudyConfig) {
			c.Storage.Destination = StorageWebDAV
			c.Storage.WebDAVURL = ""
		}, true},
		{"min equals max", func(c *StudyConfig) { c.MinItems = 20 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.CheckRules()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStudyConfig_ThetaRange(t *testing.T) {
	cfg := StudyConfig{ThetaMin: -2.5, ThetaMax: 2.5}
	r := cfg.ThetaRange()
	assert.Equal(t, -2.5, r.Min)
	assert.Equal(t, 2.5, r.Max)
}
