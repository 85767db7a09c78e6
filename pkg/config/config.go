// Package config loads lipidkey settings from lipidkey.toml, LIPIDKEY_*
// environment variables and command line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/LipidKey/pkg/build"
	"github.com/ChrisMcGann/LipidKey/pkg/core"
	"github.com/ChrisMcGann/LipidKey/pkg/filter"
	"github.com/ChrisMcGann/LipidKey/pkg/identify"
	"github.com/ChrisMcGann/LipidKey/pkg/reader/refjson"
	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full lipidkey configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Identify IdentifyConfig `mapstructure:"identify"`
	Build    BuildConfig    `mapstructure:"build"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig locates the reference database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// IdentifyConfig holds identification parameters.
type IdentifyConfig struct {
	TolMZ       float64 `mapstructure:"tol_mz"`
	TolRT       float64 `mapstructure:"tol_rt"`
	TolCCS      float64 `mapstructure:"tol_ccs"` // percent
	Levels      string  `mapstructure:"levels"`
	ESIMode     string  `mapstructure:"esi_mode"`
	Norm        string  `mapstructure:"norm"`
	IncludeRT   bool    `mapstructure:"include_rt"`
	Workers     int     `mapstructure:"workers"`
	Calibration string  `mapstructure:"calibration"` // CSV of raw_rt,ref_rt
}

// BuildConfig holds reference database build settings.
type BuildConfig struct {
	ChunkSize   int              `mapstructure:"chunk_size"`
	Overwrite   bool             `mapstructure:"overwrite"`
	Description string           `mapstructure:"description"`
	Datasets    []refjson.Source `mapstructure:"datasets"`
}

// LogConfig selects the logger.
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "lipids.db")

	v.SetDefault("identify.tol_mz", 0.02)
	v.SetDefault("identify.tol_rt", 1.0)
	v.SetDefault("identify.tol_ccs", 3.0)
	v.SetDefault("identify.levels", string(identify.Any))
	v.SetDefault("identify.esi_mode", "")
	v.SetDefault("identify.norm", string(identify.NormL2))
	v.SetDefault("identify.include_rt", true)
	v.SetDefault("identify.workers", 0)
	v.SetDefault("identify.calibration", "")

	v.SetDefault("build.chunk_size", 10000)
	v.SetDefault("build.overwrite", false)
	v.SetDefault("build.description", "")

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

// New returns a viper instance with defaults and environment binding. When
// configFile is empty, lipidkey.toml is looked up in the working directory
// and in ~/.config/lipidkey; a missing file is not an error.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("LIPIDKEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
		return v, nil
	}

	v.SetConfigName("lipidkey")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "lipidkey"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}
	return v, nil
}

// BindFlags binds flags to config keys. keys maps flag names to keys; flags
// missing from fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "failed to bind flag --%s", name)
		}
	}
	return nil
}

// Load decodes the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// Params converts the identification settings into engine parameters,
// loading the calibration file if one is set.
func (c IdentifyConfig) Params() (identify.Params, error) {
	levels, err := identify.ParseLevels(c.Levels)
	if err != nil {
		return identify.Params{}, err
	}
	norm, err := identify.ParseNorm(c.Norm)
	if err != nil {
		return identify.Params{}, err
	}
	p := identify.Params{
		Config: filter.Config{
			TolMZ:     c.TolMZ,
			TolRT:     c.TolRT,
			TolCCSPct: c.TolCCS,
			ESIMode:   c.ESIMode,
		},
		Levels:    levels,
		Norm:      norm,
		IncludeRT: c.IncludeRT,
		Workers:   c.Workers,
	}

	if c.Calibration != "" {
		f, err := os.Open(c.Calibration)
		if err != nil {
			return identify.Params{}, errors.Wrap(err, "failed to open calibration file")
		}
		defer f.Close()
		cal, err := core.LoadRTCalibrationCSV(f)
		if err != nil {
			return identify.Params{}, errors.Wrapf(err, "calibration %s", c.Calibration)
		}
		p.Calibration = cal
	}
	return p, nil
}

// Options converts the build settings into builder options for out.
func (c BuildConfig) Options(out string) build.Options {
	return build.Options{
		OutputPath:  out,
		Overwrite:   c.Overwrite,
		ChunkSize:   c.ChunkSize,
		Datasets:    c.Datasets,
		Description: c.Description,
	}
}
