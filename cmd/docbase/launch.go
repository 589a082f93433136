// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docbase/internal/launcher"
	"github.com/pdiddy/docbase/internal/secrets"
	"github.com/pdiddy/docbase/pkg/types"
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch a local vLLM inference server",
	Long: `Launch starts a vLLM API server for the model in --model-dir,
falling back to --base-model when the directory holds no weight files.
Tokens from the secrets directory are injected into the server
environment. The command blocks until the server answers, then waits
for it to exit.`,
	RunE: runLaunch,
}

func init() {
	launchCmd.Flags().String("model-dir", "", "directory holding model weights")
	launchCmd.Flags().String("base-model", "", "fallback model identifier")
	launchCmd.Flags().Bool("trust-remote-code", false, "pass --trust-remote-code to the server")
	launchCmd.Flags().StringToString("option", nil, "server argument overrides, e.g. --option port=9000")
	launchCmd.Flags().String("secrets-dir", ".secrets/", "directory of token files for the server environment")
	launchCmd.Flags().Duration("ready-timeout", 5*time.Minute, "how long to wait for the server to answer")

	rootCmd.AddCommand(launchCmd)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	modelDir, _ := cmd.Flags().GetString("model-dir")
	baseModel, _ := cmd.Flags().GetString("base-model")
	trustRemoteCode, _ := cmd.Flags().GetBool("trust-remote-code")
	options, _ := cmd.Flags().GetStringToString("option")
	secretsDir, _ := cmd.Flags().GetString("secrets-dir")
	readyTimeout, _ := cmd.Flags().GetDuration("ready-timeout")

	if modelDir == "" && baseModel == "" {
		return fmt.Errorf("provide --model-dir or --base-model")
	}

	loaded, err := secrets.Load(secretsDir)
	if err != nil {
		return err
	}
	if len(loaded) > 0 {
		keys := make([]string, 0, len(loaded))
		for k := range loaded {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
	}

	l, err := launcher.New(types.LaunchConfig{
		ModelDir:        modelDir,
		BaseModel:       baseModel,
		TrustRemoteCode: trustRemoteCode,
		Options:         options,
		SecretsDir:      secretsDir,
		ReadyTimeout:    readyTimeout,
	})
	if err != nil {
		return err
	}

	proc, err := l.Launch(context.Background(), loaded, os.Stderr)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Server ready at %s\n", l.GenerateURL())
	return proc.Wait()
}
