package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the full runner configuration.
type Config struct {
	Data       DataConfig       `yaml:"data" json:"data"`
	Features   FeaturesConfig   `yaml:"features" json:"features"`
	Preprocess PreprocessConfig `yaml:"preprocess" json:"preprocess"`
	Training   TrainingConfig   `yaml:"training" json:"training"`
}

// DataConfig describes the input dataset.
type DataConfig struct {
	Path       string `yaml:"path" json:"path"`
	Target     string `yaml:"target" json:"target"`
	DateColumn string `yaml:"date_column" json:"date_column"`
}

// FeaturesConfig controls time-series feature engineering.
type FeaturesConfig struct {
	Enabled      bool               `yaml:"enabled" json:"enabled"`
	ValueColumns []string           `yaml:"value_columns" json:"value_columns"`
	Windows      []int              `yaml:"windows" json:"windows"` // row counts
	Thresholds   map[string]float64 `yaml:"thresholds" json:"thresholds"`
}

// PreprocessConfig controls the preprocessing plan.
type PreprocessConfig struct {
	ScaleNumeric         bool `yaml:"scale_numeric" json:"scale_numeric"`
	MaxCategories        int  `yaml:"max_categories" json:"max_categories"`
	DropHighCardinality  bool `yaml:"drop_high_cardinality" json:"drop_high_cardinality"`
	HighCardinalityLimit int  `yaml:"high_cardinality_limit" json:"high_cardinality_limit"`
}

// TrainingConfig controls model comparison.
type TrainingConfig struct {
	Task            string   `yaml:"task" json:"task"` // classification, regression, auto
	TestSize        float64  `yaml:"test_size" json:"test_size"`
	Seed            int64    `yaml:"seed" json:"seed"`
	FastMode        bool     `yaml:"fast_mode" json:"fast_mode"`
	HandleImbalance bool     `yaml:"handle_imbalance" json:"handle_imbalance"`
	CrossValidate   bool     `yaml:"cross_validate" json:"cross_validate"`
	CVFolds         int      `yaml:"cv_folds" json:"cv_folds"`
	SelectedModels  []string `yaml:"selected_models" json:"selected_models"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Features: FeaturesConfig{
			Windows: []int{7, 30},
		},
		Preprocess: PreprocessConfig{
			ScaleNumeric:         true,
			MaxCategories:        50,
			DropHighCardinality:  true,
			HighCardinalityLimit: 100,
		},
		Training: TrainingConfig{
			Task:     "auto",
			TestSize: 0.2,
			Seed:     42,
			CVFolds:  5,
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file. Decoding
// starts from the defaults, so fields the file omits keep their default
// value, booleans included.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnvironment overrides config values from CLIMRISK_* environment
// variables. File values win over defaults, environment wins over both.
func (c *Config) ApplyEnvironment() {
	if v := os.Getenv("CLIMRISK_DATA_PATH"); v != "" {
		c.Data.Path = v
	}
	if v := os.Getenv("CLIMRISK_TARGET"); v != "" {
		c.Data.Target = v
	}
	if v := os.Getenv("CLIMRISK_TASK"); v != "" {
		c.Training.Task = v
	}
	if v := os.Getenv("CLIMRISK_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Training.Seed = seed
		}
	}
	if v := os.Getenv("CLIMRISK_FAST_MODE"); v != "" {
		if fast, err := strconv.ParseBool(v); err == nil {
			c.Training.FastMode = fast
		}
	}
}

// SaveToFile writes the configuration to a YAML or JSON file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		return fmt.Errorf("test_size must be in (0, 1), got %g", c.Training.TestSize)
	}
	validTasks := []string{"classification", "regression", "auto"}
	if !contains(validTasks, c.Training.Task) {
		return fmt.Errorf("invalid task: %s", c.Training.Task)
	}
	if c.Training.CVFolds < 2 {
		return fmt.Errorf("cv_folds must be at least 2, got %d", c.Training.CVFolds)
	}
	if c.Preprocess.MaxCategories < 1 {
		return fmt.Errorf("max_categories must be positive, got %d", c.Preprocess.MaxCategories)
	}
	for _, w := range c.Features.Windows {
		if w < 1 {
			return fmt.Errorf("feature windows must be positive, got %d", w)
		}
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
