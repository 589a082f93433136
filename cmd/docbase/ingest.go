// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docbase/internal/ingest"
	"github.com/pdiddy/docbase/internal/registry"
	"github.com/pdiddy/docbase/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Stage files into the corpus and register them",
	Long: `Ingest runs local files through the staging pipeline: archives are
expanded, unrecognized file types are dropped, and accepted files are
promoted into the corpus directory. Promoted files are recorded in the
catalog with status success and attached to the target group.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("group", registry.DefaultGroup, "group to attach ingested files to")
	ingestCmd.Flags().Bool("override", false, "replace corpus files that already exist")
	ingestCmd.Flags().StringSlice("file-types", nil, "accepted file suffixes (default .docx,.pdf,.txt,.json)")
	ingestCmd.Flags().Int("pool-size", 0, "number of concurrent staging workers")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more files to ingest")
	}

	group, _ := cmd.Flags().GetString("group")
	override, _ := cmd.Flags().GetBool("override")
	fileTypes, _ := cmd.Flags().GetStringSlice("file-types")
	poolSize, _ := cmd.Flags().GetInt("pool-size")

	reg, cfg, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	ctx := context.Background()
	if err := reg.InitTables(ctx); err != nil {
		return err
	}

	var files []ingest.File
	for _, arg := range args {
		f, err := os.Open(arg)
		if err != nil {
			return fmt.Errorf("opening %s: %w", arg, err)
		}
		defer f.Close()
		files = append(files, ingest.File{Name: filepath.Base(arg), Content: f})
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	opts := []ingest.Option{ingest.WithOverride(override), ingest.WithLogger(logger)}
	if len(fileTypes) > 0 {
		opts = append(opts, ingest.WithFileTypes(fileTypes))
	}
	if poolSize > 0 {
		opts = append(opts, ingest.WithPoolSize(poolSize))
	}

	pipe, err := ingest.NewPipeline(cfg.Dir, opts...)
	if err != nil {
		return err
	}
	result, err := pipe.Save(files)
	if err != nil {
		return err
	}

	promoted := append(append([]string{}, result.NewlyAdded...), result.Overwritten...)
	paths := make([]string, len(promoted))
	for i, name := range promoted {
		paths[i] = filepath.Join(cfg.Dir, name)
	}

	if len(paths) > 0 {
		if err := reg.AddFiles(ctx, paths, registry.AddOptions{Status: types.StatusSuccess}); err != nil {
			return err
		}
		if err := reg.AddGroup(ctx, group); err != nil {
			return err
		}
		if err := reg.AddFilesToGroup(ctx, paths, group); err != nil {
			return err
		}
	}

	for _, name := range result.AlreadyExists {
		fmt.Printf("exists      %s\n", name)
	}
	for _, name := range result.NewlyAdded {
		fmt.Printf("added       %s\n", name)
	}
	for _, name := range result.Overwritten {
		fmt.Printf("overwritten %s\n", name)
	}
	for _, f := range result.Failed {
		fmt.Fprintf(os.Stderr, "failed      %s: %v\n", f.Name, f.Err)
	}
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed ingestion", len(result.Failed))
	}
	return nil
}
