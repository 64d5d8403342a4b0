package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/umfhero/pixel-agents/internal/persistence/indexdb"
	"github.com/umfhero/pixel-agents/internal/persistence/journal"
)

func auditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit <office.db>",
		Short: "Show recent layout writes recorded in the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}
			idx, err := indexdb.OpenSQLite(args[0])
			if err != nil {
				return err
			}
			defer idx.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			rows, err := idx.Audits(ctx, limit)
			if err != nil {
				return err
			}
			ids, err := idx.LoadRoster(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "roster: %v\n", ids)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SEQ\tAT\tSOURCE\tACTION\tSIZE\tFURNITURE\tDIGEST")
			for _, r := range rows {
				digest := r.Digest
				if len(digest) > 12 {
					digest = digest[:12]
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%dx%d\t%d\t%s\n",
					r.Seq, r.At.Local().Format("2006-01-02 15:04:05"), r.Source, r.Action, r.Cols, r.Rows, r.Furniture, digest)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to show")
	return cmd
}

func journalCmd() *cobra.Command {
	var (
		prefix string
		kind   string
	)
	cmd := &cobra.Command{
		Use:   "journal <dir>",
		Short: "Print journaled office events in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := journal.ReadAll(args[0], prefix)
			out := cmd.OutOrStdout()
			for _, e := range entries {
				if kind != "" && e.Kind != kind {
					continue
				}
				fmt.Fprintf(out, "%s %-8s %s\n", e.At.Local().Format("2006-01-02 15:04:05.000"), e.Kind, describe(e))
			}
			// Entries before a torn frame are printed before the error.
			return err
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "office", "journal file prefix")
	cmd.Flags().StringVar(&kind, "kind", "", "only show this kind (presence, agent, layout)")
	return cmd
}

func describe(e journal.Entry) string {
	switch e.Kind {
	case journal.KindPresence:
		return e.State
	case journal.KindAgent:
		return fmt.Sprintf("%s #%d", e.Action, e.Agent)
	case journal.KindLayout:
		d := e.Digest
		if len(d) > 12 {
			d = d[:12]
		}
		return fmt.Sprintf("%s (%s) %s", e.Action, e.Source, d)
	}
	return e.Action
}
