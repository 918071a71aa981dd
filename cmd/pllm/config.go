package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/metalagman/pllm/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath     = ".pllm/config.yaml"
	defaultJSONConfigPath = ".pllm/config.json"
)

// resolveConfigPath returns the config file to read. The default yaml path
// falls back to the json one when only that exists.
func resolveConfigPath(root, path string) string {
	if path == "" {
		path = defaultConfigPath
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if path == filepath.Join(root, defaultConfigPath) && !fileExists(path) {
		if alt := filepath.Join(root, defaultJSONConfigPath); fileExists(alt) {
			return alt
		}
	}
	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// loadConfig merges defaults, the config file, mission overrides, PLLM_ env
// variables and bound flags, then validates the result.
func loadConfig(root string, overrides map[string]any) (config.Config, error) {
	for key, value := range config.Defaults() {
		viper.SetDefault(key, value)
	}
	viper.SetEnvPrefix("PLLM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	path := resolveConfigPath(root, cfgFile)
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	if len(overrides) > 0 {
		if err := viper.MergeConfigMap(overrides); err != nil {
			return config.Config{}, fmt.Errorf("merge mission overrides: %w", err)
		}
	}
	if stateDir != "" {
		viper.Set("state_dir", stateDir)
	}

	var cfg config.Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(&cfg, hook); err != nil {
		return config.Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "config",
		Short:        "Print the effective configuration as YAML",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := workDir()
			if err != nil {
				return err
			}
			if _, err := loadConfig(root, nil); err != nil {
				return err
			}
			out, err := yaml.Marshal(printable(viper.AllSettings()))
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// printable renders durations as strings so the output can be read back.
func printable(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for key, value := range settings {
		switch v := value.(type) {
		case map[string]any:
			out[key] = printable(v)
		case time.Duration:
			out[key] = v.String()
		default:
			out[key] = v
		}
	}
	return out
}
