package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/umfhero/pixel-agents/internal/office/layout"
	"github.com/umfhero/pixel-agents/internal/persistence/archive"
	"github.com/umfhero/pixel-agents/internal/persistence/sharedstore"
)

func backupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List or restore layout backups",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <dir>",
		Short: "List backups, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := archive.List(args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", e.At.UTC().Format("2006-01-02 15:04:05.000"), e.Path, e.Size)
			}
			return tw.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "restore <backup> <layout.json>",
		Short: "Write a backup back to the shared layout file",
		Long:  "The restored record is loaded through the migrator first. Running instances pick it up as an external change.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := archive.Restore(args[0])
			if err != nil {
				return err
			}
			l, err := layout.Load(raw)
			if err != nil {
				return fmt.Errorf("backup %s: %w", args[0], err)
			}
			if _, err := sharedstore.New(args[1]).Write(l); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s -> %s (%dx%d, %d furniture)\n",
				args[0], args[1], l.Cols, l.Rows, len(l.Furniture))
			return nil
		},
	})
	return cmd
}
