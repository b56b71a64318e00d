// Package config loads the Lavandowski configuration from defaults, an
// optional TOML, YAML or JSON file and the process environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

// Environment variables read by Load.
const (
	EnvTier          = "LAVANDOWSKI_TIER"
	EnvDebug         = "LAVANDOWSKI_DEBUG"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvBDCToken      = "BDC_ACCESS_TOKEN"
	EnvBDCTokenID    = "BDC_TOKEN_ID"
	EnvSubmissionKey = "KEY_MASTER"
	EnvUserID        = "USER_ID"
	EnvProject       = "GOOGLE_CLOUD_PROJECT"
	EnvLocation      = "LOCATION"
)

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load builds the configuration. The tier (from LAVANDOWSKI_TIER or the
// file's tier key) picks the defaults, the file overlays them and the
// environment overlays the file. An empty path skips the file.
func Load(path string) (*domain.Config, error) {
	var data []byte
	var decode func([]byte, any) error
	if path != "" {
		var err error
		data, decode, err = readFile(path)
		if err != nil {
			return nil, err
		}
	}

	tier := domain.Tier(os.Getenv(EnvTier))
	if tier == "" && decode != nil {
		var peek struct {
			Tier domain.Tier `json:"tier" yaml:"tier" toml:"tier"`
		}
		if err := decode(data, &peek); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		tier = peek.Tier
	}

	cfg := domain.DefaultConfig()
	if tier == domain.TierPro {
		cfg = domain.ProConfig()
	}

	if decode != nil {
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if tier != "" {
		cfg.Tier = tier
	}

	if err := ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile picks a decoder from the file extension.
func readFile(path string) ([]byte, func([]byte, any) error, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error accessing config file: %w", err)
	}
	if info.IsDir() {
		return nil, nil, fmt.Errorf("%s is a directory, not a file", path)
	}

	var decode func([]byte, any) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		decode = toml.Unmarshal
	case ".yaml", ".yml":
		decode = yaml.Unmarshal
	case ".json":
		decode = json.Unmarshal
	default:
		return nil, nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading config file: %w", err)
	}
	return data, decode, nil
}

// ApplyEnv overlays credentials and deployment settings from the environment.
func ApplyEnv(cfg *domain.Config, getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.LLM.APIKey, EnvOpenAIKey)
	set(&cfg.Identity.AccessToken, EnvBDCToken)
	set(&cfg.Identity.TokenID, EnvBDCTokenID)
	set(&cfg.Submission.APIKey, EnvSubmissionKey)
	set(&cfg.Warehouse.Project, EnvProject)
	set(&cfg.Warehouse.Location, EnvLocation)

	if v := getenv(EnvUserID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidConfig, EnvUserID, v)
		}
		cfg.Alerts.UserID = id
	}
	if getenv(EnvDebug) == "true" {
		cfg.Logging.Level = "debug"
	}
	return nil
}

// Validate checks the settings every command needs.
func Validate(cfg *domain.Config) error {
	var problems []string

	switch cfg.Warehouse.Driver {
	case "bigquery":
		if cfg.Warehouse.Project == "" {
			problems = append(problems, "warehouse.project is required for bigquery")
		}
	case "postgres", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("unknown warehouse driver %q", cfg.Warehouse.Driver))
	}

	switch cfg.LLM.Mode {
	case domain.ModeBasic, domain.ModeEnhanced, domain.ModeReasoning:
	default:
		problems = append(problems, fmt.Sprintf("unknown llm.mode %q", cfg.LLM.Mode))
	}

	if cfg.Alerts.LookbackDays < 0 || cfg.Alerts.ExclusionDays < 0 {
		problems = append(problems, "alerts day windows must not be negative")
	}
	if cfg.Alerts.UserID < 0 {
		problems = append(problems, "alerts.user_id must be positive")
	}
	for _, f := range cfg.Export.Formats {
		switch f {
		case "csv", "json", "pdf":
		default:
			problems = append(problems, fmt.Sprintf("unknown export format %q", f))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
