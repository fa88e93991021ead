package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/irt-tools/cat-service/internal/irt"
)

// Selection criteria supported by the item selector.
const (
	SelectionMaxInfo = "max_info"
	SelectionRandom  = "random"
)

// SupportedThemes are the display themes the front end ships styles for.
var SupportedThemes = []string{"light", "dark", "hildesheim", "monochrome"}

// SupportedLocales are the UI languages with bundled message catalogs.
var SupportedLocales = []string{"en", "de"}

// Storage destinations for exported study results.
const (
	StorageLocal  = "local"
	StorageWebDAV = "webdav"
)

// DemographicField describes one demographic question asked before the test.
type DemographicField struct {
	Name     string   `yaml:"name" json:"name" validate:"required"`
	Prompt   string   `yaml:"prompt" json:"prompt" validate:"required"`
	Required bool     `yaml:"required" json:"required"`
	Options  []string `yaml:"options,omitempty" json:"options,omitempty"`
}

// StorageConfig selects where exported result files are archived.
type StorageConfig struct {
	Destination string `yaml:"destination" json:"destination" validate:"omitempty,oneof=local webdav"`
	LocalDir    string `yaml:"local_dir,omitempty" json:"local_dir,omitempty"`

	// WebDAV-style upload to a shared folder. The share token doubles as the
	// basic-auth username on public share endpoints.
	WebDAVURL   string `yaml:"webdav_url,omitempty" json:"webdav_url,omitempty" validate:"omitempty,url"`
	ShareToken  string `yaml:"share_token,omitempty" json:"share_token,omitempty"`
	SharePasswd string `yaml:"share_password,omitempty" json:"share_password,omitempty"`
}

// StudyConfig is the full configuration of one adaptive study. It is
// validated before launch and treated as immutable once a session has
// started: the engine works from its own copy.
type StudyConfig struct {
	Name string `yaml:"name" json:"name" validate:"required,min=1,max=200"`

	Model              irt.Model `yaml:"model" json:"model" validate:"required,irt_model"`
	SelectionCriterion string    `yaml:"selection_criterion" json:"selection_criterion" validate:"required,selection_criterion"`

	MinItems    int     `yaml:"min_items" json:"min_items" validate:"required,min=1,max=500"`
	MaxItems    int     `yaml:"max_items" json:"max_items" validate:"required,min=1,max=500"`
	SEThreshold float64 `yaml:"se_threshold" json:"se_threshold" validate:"required,gt=0"`

	StartTheta float64 `yaml:"start_theta" json:"start_theta"`
	ThetaMin   float64 `yaml:"theta_min" json:"theta_min"`
	ThetaMax   float64 `yaml:"theta_max" json:"theta_max"`

	// Optional selection constraints.
	MaxPerCategory  map[string]int `yaml:"max_per_category,omitempty" json:"max_per_category,omitempty"`
	MaxExposureRate float64        `yaml:"max_exposure_rate,omitempty" json:"max_exposure_rate,omitempty" validate:"omitempty,gt=0,lte=1"`

	Demographics []DemographicField `yaml:"demographics,omitempty" json:"demographics,omitempty" validate:"dive"`

	Locale string `yaml:"locale" json:"locale" validate:"omitempty,locale_code"`
	Theme  string `yaml:"theme" json:"theme" validate:"omitempty,display_theme"`

	Storage StorageConfig `yaml:"storage" json:"storage"`
}

// ApplyDefaults fills unset fields with the conventional defaults.
func (c *StudyConfig) ApplyDefaults() {
	if c.SelectionCriterion == "" {
		c.SelectionCriterion = SelectionMaxInfo
	}
	if c.ThetaMin == 0 && c.ThetaMax == 0 {
		c.ThetaMin = irt.DefaultThetaRange.Min
		c.ThetaMax = irt.DefaultThetaRange.Max
	}
	if c.Locale == "" {
		c.Locale = "en"
	}
	if c.Theme == "" {
		c.Theme = "light"
	}
	if c.Storage.Destination == "" {
		c.Storage.Destination = StorageLocal
	}
}

// ThetaRange returns the configured ability range.
func (c *StudyConfig) ThetaRange() irt.ThetaRange {
	return irt.ThetaRange{Min: c.ThetaMin, Max: c.ThetaMax}
}

// CheckRules enforces cross-field rules the struct tags cannot express.
// Violations here are fatal before launch.
func (c *StudyConfig) CheckRules() error {
	if c.MinItems > c.MaxItems {
		return fmt.Errorf("min_items (%d) must not exceed max_items (%d)", c.MinItems, c.MaxItems)
	}
	if c.ThetaMin >= c.ThetaMax {
		return fmt.Errorf("theta_min (%v) must be below theta_max (%v)", c.ThetaMin, c.ThetaMax)
	}
	if c.StartTheta < c.ThetaMin || c.StartTheta > c.ThetaMax {
		return fmt.Errorf("start_theta (%v) must lie within [%v, %v]", c.StartTheta, c.ThetaMin, c.ThetaMax)
	}
	if c.Storage.Destination == StorageWebDAV && c.Storage.WebDAVURL == "" {
		return fmt.Errorf("webdav storage requires webdav_url")
	}
	return nil
}

// LoadStudyConfig reads a study configuration from a YAML file and applies
// defaults. Struct-tag and business-rule validation is the caller's job so
// all failures surface through the shared validator.
func LoadStudyConfig(path string) (*StudyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read study config: %w", err)
	}
	return ParseStudyConfig(data)
}

// ParseStudyConfig parses a YAML study configuration.
func ParseStudyConfig(data []byte) (*StudyConfig, error) {
	var cfg StudyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse study config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
