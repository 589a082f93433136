// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the docbase CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docbase/internal/registry"
	"github.com/pdiddy/docbase/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the docbase CLI.
var rootCmd = &cobra.Command{
	Use:   "docbase",
	Short: "Document catalog and ingestion for local corpora",
	Long: `docbase maintains a SQLite catalog of the documents in a corpus
directory: which files exist, which knowledge-base groups they belong to,
and where each file sits in its processing lifecycle.

Uploads run through a staging pipeline that expands archives, filters by
file type, and promotes accepted files into the corpus atomically. The
serve subcommand exposes the same operations over HTTP.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./docbase.yaml or ~/.config/docbase/config.yaml)")
	rootCmd.PersistentFlags().String("dir", "", "corpus directory (absolute path)")
	rootCmd.PersistentFlags().String("name", "default", "catalog name, part of the backing store identity")
	rootCmd.PersistentFlags().String("backend", "", "registry backend (default sqlite)")
	rootCmd.PersistentFlags().String("state-dir", "", "directory for catalog databases (default ~/.config/docbase)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("docbase")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "docbase"))
		}
	}

	viper.SetEnvPrefix("DOCBASE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// registryConfig resolves the registry settings from flags, then config
// file, then defaults. The corpus directory is required and must be
// absolute.
func registryConfig(cmd *cobra.Command) (types.RegistryConfig, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = viper.GetString("dir")
	}
	if dir == "" {
		return types.RegistryConfig{}, fmt.Errorf("corpus directory is required (--dir or 'dir' in config)")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return types.RegistryConfig{}, fmt.Errorf("resolving corpus directory: %w", err)
	}

	name, _ := cmd.Flags().GetString("name")
	if v := viper.GetString("name"); v != "" && !cmd.Flags().Changed("name") {
		name = v
	}
	backend, _ := cmd.Flags().GetString("backend")
	if backend == "" {
		backend = viper.GetString("backend")
	}
	stateDir, _ := cmd.Flags().GetString("state-dir")
	if stateDir == "" {
		stateDir = viper.GetString("state_dir")
	}

	return types.RegistryConfig{
		Dir:      abs,
		Name:     name,
		Backend:  backend,
		StateDir: stateDir,
	}, nil
}

// openRegistry opens the catalog described by the persistent flags.
func openRegistry(cmd *cobra.Command) (registry.Registry, types.RegistryConfig, error) {
	cfg, err := registryConfig(cmd)
	if err != nil {
		return nil, types.RegistryConfig{}, err
	}
	reg, err := registry.Open(cfg)
	if err != nil {
		return nil, types.RegistryConfig{}, err
	}
	return reg, cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
