package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "officectl",
		Short:        "Offline tools for pixel office layouts",
		SilenceUsage: true,
	}
	root.AddCommand(validateCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(masksCmd())
	root.AddCommand(backupsCmd())
	root.AddCommand(auditCmd())
	root.AddCommand(journalCmd())
	return root
}
