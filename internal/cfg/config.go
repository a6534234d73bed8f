package cfg

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

var CONFIG_PATH = os.ExpandEnv("$HOME/.tcast.yaml")

// Config holds user defaults for rendering. Command line flags win over it.
type Config struct {
	FPS           int     `yaml:"fps"`
	IdleTimeLimit float64 `yaml:"idle_time_limit"`
	FontSize      float64 `yaml:"font_size"`
	SkipUnknown   bool    `yaml:"skip_unknown"`
	Loop          int     `yaml:"loop"`
}

func NewCfg() Config {
	return Config{
		FontSize: DEFAULT_FONT_SIZE,
	}
}

func ReadCfg(path string) (Config, error) {
	cfg := NewCfg()
	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(content, &cfg)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

func WriteCfg(path string, cfg Config) error {
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, 0644)
}

// UpdateCfg sets a single key and writes the file back. A missing file starts from defaults.
func UpdateCfg(path, key, value string) (Config, error) {
	cfg, err := ReadCfg(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}

	switch key {
	case "fps":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("invalid fps: %q", value)
		}
		cfg.FPS = n
	case "idle_time_limit":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid idle_time_limit: %q", value)
		}
		cfg.IdleTimeLimit = f
	case "font_size":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return cfg, fmt.Errorf("invalid font_size: %q", value)
		}
		cfg.FontSize = f
	case "skip_unknown":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return cfg, fmt.Errorf("invalid skip_unknown: %q", value)
		}
		cfg.SkipUnknown = b
	case "loop":
		n, err := strconv.Atoi(value)
		if err != nil {
			return cfg, fmt.Errorf("invalid loop: %q", value)
		}
		cfg.Loop = n
	default:
		return cfg, fmt.Errorf("Unknown key: %s", key)
	}

	err = WriteCfg(path, cfg)
	return cfg, err
}

// LoadCfg reads path and falls back to defaults when the file does not exist.
func LoadCfg(path string) (Config, error) {
	cfg, err := ReadCfg(path)
	if os.IsNotExist(err) {
		return NewCfg(), nil
	}
	return cfg, err
}
