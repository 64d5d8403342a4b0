package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/umfhero/pixel-agents/internal/office/autotile"
	"github.com/umfhero/pixel-agents/internal/office/catalogs"
	"github.com/umfhero/pixel-agents/internal/office/layout"
	"github.com/umfhero/pixel-agents/internal/office/placement"
	"github.com/umfhero/pixel-agents/internal/office/tiles"
)

func validateCmd() *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "validate <layout.json>",
		Short: "Load a layout through the migrator and check every placement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, from, err := loadLayoutFile(args[0])
			if err != nil {
				return err
			}
			cat, err := catalogs.Load(catalogPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			issues := placement.New(cat).Check(l)
			if len(issues) == 0 {
				fmt.Fprintf(out, "ok: %dx%d, %d furniture, version %d (read as v%d)\n",
					l.Cols, l.Rows, len(l.Furniture), l.Version, from)
				return nil
			}
			fmt.Fprintf(out, "Errors (%d):\n", len(issues))
			for _, e := range issues {
				fmt.Fprintf(out, "  - %v\n", e)
			}
			return fmt.Errorf("validation found errors")
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "furniture catalog file (default: embedded)")
	return cmd
}

func migrateCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "migrate <layout.json>",
		Short: "Rewrite a layout record at the current schema version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, from, err := loadLayoutFile(args[0])
			if err != nil {
				return err
			}
			b, err := layout.Serialize(l)
			if err != nil {
				return err
			}
			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			if err := os.WriteFile(outPath, b, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "migrated v%d -> v%d: %s\n", from, layout.CurrentVersion, outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func masksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "masks <layout.json>",
		Short: "Print the wall bitmask of every wall tile",
		Long:  "Walls print their N=1 E=2 S=4 W=8 mask as a hex digit, floors print '.', void prints '_'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, _, err := loadLayoutFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderMasks(l))
			return nil
		},
	}
}

func renderMasks(l *layout.Layout) string {
	g := l.Grid()
	masks := autotile.Masks(l.Tiles, g)
	var sb strings.Builder
	for r := 0; r < l.Rows; r++ {
		for c := 0; c < l.Cols; c++ {
			i := g.Index(c, r)
			switch k := l.Tiles[i]; {
			case k.IsWall():
				fmt.Fprintf(&sb, "%x", masks[i])
			case k == tiles.Void:
				sb.WriteByte('_')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// loadLayoutFile returns the migrated layout and the version it was stored at.
func loadLayoutFile(path string) (*layout.Layout, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	rec, err := layout.DecodeRecord(raw)
	if err != nil {
		return nil, 0, err
	}
	from, err := layout.RecordVersion(rec)
	if err != nil {
		return nil, 0, err
	}
	l, err := layout.Load(raw)
	if err != nil {
		return nil, from, err
	}
	return l, from, nil
}
