package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "acesso",
	Short: "Acesso is an encryption-gated client records vault",
	Long: `A single-workspace vault for client records and access credentials.
Sensitive fields are encrypted with a master key derived from the workspace
password; the key only exists in memory while a session is unlocked.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
