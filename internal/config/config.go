package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/bbngrid/internal/card"
	"github.com/san-kum/bbngrid/internal/collect"
)

const (
	DefaultExecutable = "parthenope3.0"
	DefaultDataDir    = "grids"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	EnvPrefix         = "BBNGRID"
)

type Config struct {
	Executable string          `yaml:"executable" mapstructure:"executable"`
	Build      []string        `yaml:"build" mapstructure:"build"`
	WorkDir    string          `yaml:"work_dir" mapstructure:"work_dir"`
	DataDir    string          `yaml:"data_dir" mapstructure:"data_dir"`
	Workers    int             `yaml:"workers" mapstructure:"workers"`
	JobTimeout time.Duration   `yaml:"job_timeout" mapstructure:"job_timeout"`
	Network    string          `yaml:"network" mapstructure:"network"`
	Listen     string          `yaml:"listen" mapstructure:"listen"`
	Log        LogConfig       `yaml:"log" mapstructure:"log"`
	Markers    collect.Markers `yaml:"markers" mapstructure:"markers"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Executable: DefaultExecutable,
		Build:      []string{"make"},
		WorkDir:    ".",
		DataDir:    DefaultDataDir,
		Workers:    runtime.NumCPU(),
		Network:    string(card.SmallNet),
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Markers: collect.DefaultMarkers(),
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("executable", d.Executable)
	v.SetDefault("build", d.Build)
	v.SetDefault("work_dir", d.WorkDir)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("job_timeout", d.JobTimeout)
	v.SetDefault("network", d.Network)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("markers.success", d.Markers.Success)
	v.SetDefault("markers.failed", d.Markers.Failed)
	v.SetDefault("markers.check", d.Markers.Check)
	v.SetDefault("markers.manual", d.Markers.Manual)
}

// Load reads the configuration file at path, if any, on top of the defaults.
// BBNGRID_* environment variables override both, e.g. BBNGRID_LOG_LEVEL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Executable == "" {
		return fmt.Errorf("config: executable must be set")
	}
	if !card.Network(c.Network).Valid() {
		return fmt.Errorf("config: %w: %q", card.ErrUnknownNetwork, c.Network)
	}
	if c.JobTimeout < 0 {
		return fmt.Errorf("config: job_timeout must not be negative")
	}
	return nil
}

// ConfigureLogging sets the level and format of the process-wide logger.
func ConfigureLogging(level, format string, out io.Writer) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	if out != nil {
		log.SetOutput(out)
	}
	return nil
}
