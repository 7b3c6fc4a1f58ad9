package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/storage/db"
)

var (
	dbCmd = &cobra.Command{
		Use:   "db",
		Short: "Database related commands",
	}

	dbListCmd = &cobra.Command{
		Use:     "ls",
		Short:   "list all registered database types",
		Aliases: []string{"list", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered database types:")

			for _, dbType := range db.GetRegisteredDBTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), " - "+string(dbType))
			}
		},
	}

	dbMigrateCmd = &cobra.Command{
		Use:     "migrate",
		Short:   "create or update the accounts, resources and resource_tags tables",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configs.GetConfig()

			client, err := db.New(cmd.Context(), &cfg.DB)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Migrate(cmd.Context(), model.All()...); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database %q\n", cfg.DB.GetDBType(), cfg.DB.Database)

			return nil
		},
	}
)

// registerDBCommands 注册数据库相关命令.
func registerDBCommands() {
	rootCmd.AddCommand(dbCmd)

	dbCmd.AddCommand(dbListCmd)
	dbCmd.AddCommand(dbMigrateCmd)
}
