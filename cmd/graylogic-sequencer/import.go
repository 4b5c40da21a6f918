package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sequencer/internal/schedule"
)

func newImportCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "import [showfile]...",
		Short: "Store showfiles in the sequence database",
		Long: `Parses each showfile and stores it, replacing a stored sequence with the
same slug. Without arguments every .yaml and .yml file in
sequencer.showfile_dir is imported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(configPath())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			paths := args
			if len(paths) == 0 {
				if paths, err = showfilesIn(cfg.Sequencer.ShowfileDir); err != nil {
					return err
				}
				if len(paths) == 0 {
					return fmt.Errorf("no showfiles in %s", cfg.Sequencer.ShowfileDir)
				}
			}

			db, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Read-mostly CLI session

			registry := schedule.NewRegistry(schedule.NewSQLiteRepository(db.DB))
			if err := registry.RefreshCache(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, path := range paths {
				def, err := schedule.ParseFile(path, parseOptions(cfg.Sequencer.Defaults))
				if err != nil {
					return err
				}
				replaced, err := registry.Import(ctx, def)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				action := "created"
				if replaced {
					action = "updated"
				}
				fmt.Fprintf(out, "%s %s (%s) from %s\n", action, def.Slug, def.ID, path)
			}
			return nil
		},
	}
}

// showfilesIn lists the YAML files in dir, sorted by name.
func showfilesIn(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("listing showfiles: %w", err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}
