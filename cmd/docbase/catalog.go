// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docbase/internal/registry"
	"github.com/pdiddy/docbase/pkg/types"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the document catalog (init, list, groups, status)",
	Long: `Catalog manages the SQLite record of the corpus: which documents
exist, which groups they belong to, and their processing status. Use
subcommands to initialize the catalog, list its contents, or update
document state.`,
}

// --- init subcommand ---

var catalogInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the catalog and register existing corpus files",
	Long: `Init creates the catalog tables if they do not exist, walks the
corpus directory, and registers every file found with status success
under the default group. Running init again is a no-op.`,
	RunE: runCatalogInit,
}

func runCatalogInit(cmd *cobra.Command, args []string) error {
	reg, cfg, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	if err := reg.InitTables(context.Background()); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Catalog ready for %s\n", cfg.Dir)
	return nil
}

// --- list subcommand ---

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cataloged documents",
	Long: `List prints the documents in the catalog, optionally filtered by
status or restricted to one group. With --group the listing shows group
memberships instead of document records.`,
	RunE: runCatalogList,
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	statusFlag, _ := cmd.Flags().GetString("status")
	details, _ := cmd.Flags().GetBool("details")
	group, _ := cmd.Flags().GetString("group")
	asJSON, _ := cmd.Flags().GetBool("json")

	status := types.Status(statusFlag)
	if status != "" && !status.ValidFilter() {
		return fmt.Errorf("unknown status filter %q", status)
	}

	reg, _, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	ctx := context.Background()
	opts := registry.ListOptions{Limit: limit, Status: status, Details: details}

	if group != "" {
		files, err := reg.ListGroupFiles(ctx, group, opts)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(files)
		}
		for _, f := range files {
			fmt.Printf("%s\t%s\t%s\n", f.Group, f.Status, f.Path)
		}
		return nil
	}

	docs, err := reg.ListFiles(ctx, opts)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(docs)
	}
	for _, d := range docs {
		if details {
			fmt.Printf("%s\t%s\t%s\n", d.DocID[:12], d.Status, d.Path)
		} else {
			fmt.Println(d.DocID)
		}
	}
	return nil
}

// --- groups subcommand ---

var catalogGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List knowledge-base groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer reg.Close()

		groups, err := reg.ListAllGroups(context.Background())
		if err != nil {
			return err
		}
		for _, g := range groups {
			fmt.Println(g)
		}
		return nil
	},
}

// --- add-group subcommand ---

var catalogAddGroupCmd = &cobra.Command{
	Use:   "add-group [names...]",
	Short: "Create knowledge-base groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("provide one or more group names")
		}
		reg, _, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer reg.Close()

		ctx := context.Background()
		for _, name := range args {
			if err := reg.AddGroup(ctx, name); err != nil {
				return err
			}
		}
		return nil
	},
}

// --- status subcommand ---

var catalogStatusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show the processing status of one document",
	RunE:  runCatalogStatus,
}

func runCatalogStatus(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provide exactly one document path")
	}

	reg, _, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	abs, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	status, err := reg.FileStatus(context.Background(), registry.DocID(abs))
	if err != nil {
		return err
	}
	fmt.Println(status)
	return nil
}

// --- set-status subcommand ---

var catalogSetStatusCmd = &cobra.Command{
	Use:   "set-status [status] [paths...]",
	Short: "Update the processing status of documents",
	Long: `Set-status moves documents to a new lifecycle status. With --group
the update applies to the membership rows of that group instead of the
document records.`,
	RunE: runCatalogSetStatus,
}

func runCatalogSetStatus(cmd *cobra.Command, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("provide a status followed by one or more document paths")
	}

	status := types.Status(args[0])
	if !status.Storable() {
		return fmt.Errorf("status %q is not storable (valid: %s)", status, strings.Join(storableStatusNames(), ", "))
	}

	reg, _, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	ctx := context.Background()
	docIDs := make([]string, 0, len(args)-1)
	for _, path := range args[1:] {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		docIDs = append(docIDs, registry.DocID(abs))
	}

	group, _ := cmd.Flags().GetString("group")
	if group != "" {
		return reg.UpdateGroupFileStatus(ctx, group, docIDs, status)
	}
	for _, id := range docIDs {
		if err := reg.UpdateFileStatus(ctx, id, status); err != nil {
			return err
		}
	}
	return nil
}

func storableStatusNames() []string {
	return []string{
		string(types.StatusWaiting),
		string(types.StatusWorking),
		string(types.StatusSuccess),
		string(types.StatusFailed),
		string(types.StatusDeleting),
		string(types.StatusDeleted),
	}
}

// --- remove subcommand ---

var catalogRemoveCmd = &cobra.Command{
	Use:   "remove [paths...]",
	Short: "Remove documents from the catalog",
	Long: `Remove deletes document records from the catalog. With --group only
the membership rows of that group are removed; the document records
stay.`,
	RunE: runCatalogRemove,
}

func runCatalogRemove(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more document paths")
	}

	reg, _, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	paths := make([]string, 0, len(args))
	for _, path := range args {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		paths = append(paths, abs)
	}

	ctx := context.Background()
	group, _ := cmd.Flags().GetString("group")
	if group != "" {
		return reg.DeleteFilesFromGroup(ctx, paths, group)
	}
	return reg.DeleteFiles(ctx, paths)
}

// --- export subcommand ---

var catalogExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the catalog to a YAML snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := "docbase-export.yaml"
		if len(args) > 0 {
			out = args[0]
		}
		reg, _, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer reg.Close()

		if err := registry.ExportYAML(context.Background(), reg, out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported catalog to %s\n", out)
		return nil
	},
}

// --- release subcommand ---

var catalogReleaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Delete the catalog's backing store",
	Long: `Release closes the catalog and removes its database files. The
corpus files themselves are untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, cfg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		if err := reg.Release(context.Background()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Released catalog for %s\n", cfg.Dir)
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	catalogListCmd.Flags().Int("limit", 0, "maximum number of rows (0 means no limit)")
	catalogListCmd.Flags().String("status", "", "filter by status (all, waiting, working, success, failed, deleting, deleted)")
	catalogListCmd.Flags().Bool("details", false, "include filename, path, and metadata")
	catalogListCmd.Flags().String("group", "", "list memberships of this group instead of documents")
	catalogListCmd.Flags().Bool("json", false, "output results as JSON")

	catalogSetStatusCmd.Flags().String("group", "", "update the membership rows of this group")
	catalogRemoveCmd.Flags().String("group", "", "remove only from this group")

	catalogCmd.AddCommand(catalogInitCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogGroupsCmd)
	catalogCmd.AddCommand(catalogAddGroupCmd)
	catalogCmd.AddCommand(catalogStatusCmd)
	catalogCmd.AddCommand(catalogSetStatusCmd)
	catalogCmd.AddCommand(catalogRemoveCmd)
	catalogCmd.AddCommand(catalogExportCmd)
	catalogCmd.AddCommand(catalogReleaseCmd)
	rootCmd.AddCommand(catalogCmd)
}
