// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the md2docx CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/md2docx/internal/logging"
	"github.com/pdiddy/md2docx/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg and logger are populated before any subcommand runs.
var (
	cfg    types.Config
	logger zerolog.Logger
)

// rootCmd is the base command for the md2docx CLI.
var rootCmd = &cobra.Command{
	Use:   "md2docx",
	Short: "Convert markdown text to Word documents",
	Long: `md2docx converts markdown text into Microsoft Word (DOCX) documents using
pandoc, either installed locally or run from a container image.

Run "md2docx serve" for the web form and JSON API, or "md2docx convert" to
convert a single file from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(viper.GetViper(), cmd.Flags()); err != nil {
			return err
		}
		loaded, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = loaded
		logger = logging.New(cfg.Log, os.Stderr)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./md2docx.yaml or ~/.config/md2docx/md2docx.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("work-dir", "", "directory for per-request temporary files")
}

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"log-level": "log.level",
	"work-dir":  "conversion.work_dir",
	"addr":      "server.addr",
	"db":        "artifacts.db_path",
	"backend":   "conversion.backend",
}

// bindFlags binds the flags of the command being run to their config keys.
// Viper keeps one binding per key, so commands sharing a flag name are bound
// at invocation rather than in init.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

func initConfig() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if err := configureViper(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
		return
	}
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}

// configureViper registers defaults, the config file search path, and the
// environment binding on v, then reads the config file if one exists.
func configureViper(v *viper.Viper, cfgFile string) error {
	setDefaults(v, types.DefaultConfig())

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("md2docx")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "md2docx"))
		}
	}

	v.SetEnvPrefix("MD2DOCX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// setDefaults registers every key so environment variables can override
// settings that no config file mentions.
func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	v.SetDefault("conversion.backend", string(d.Conversion.Backend))
	v.SetDefault("conversion.pandoc_path", d.Conversion.PandocPath)
	v.SetDefault("conversion.image", d.Conversion.Image)
	v.SetDefault("conversion.work_dir", d.Conversion.WorkDir)
	v.SetDefault("conversion.extra_args", []string{})

	v.SetDefault("artifacts.ttl", d.Artifacts.TTL)
	v.SetDefault("artifacts.sweep_interval", d.Artifacts.SweepInterval)
	v.SetDefault("artifacts.db_path", d.Artifacts.DBPath)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// loadConfig decodes v into a validated Config.
func loadConfig(v *viper.Viper) (types.Config, error) {
	c := types.DefaultConfig()
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
