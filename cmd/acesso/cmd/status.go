package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	bboltstorage "github.com/Thalikbussacro/acesso-clientes/storage/bbolt"
	"github.com/Thalikbussacro/acesso-clientes/vault"
)

var statusDataDir string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Inspect a data directory without starting the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := bboltstorage.NewRepositoryFromFile(statusDataDir+"/acesso.db", nil)
		if err != nil {
			return fmt.Errorf("failed to open record storage: %w", err)
		}
		defer repo.Close()

		ws, err := vault.New(repo).Workspace(context.Background())
		if err != nil {
			if errors.Is(err, vault.ErrWorkspaceNotFound) {
				fmt.Println("No workspace configured; run the server and call /api/auth/setup")
				return nil
			}
			return err
		}

		fmt.Printf("Workspace: %s\n", ws.Name)
		fmt.Printf("Created:   %s\n", ws.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("Updated:   %s\n", ws.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusDataDir, "data-dir", "./data", "Directory for persistent data")
}
