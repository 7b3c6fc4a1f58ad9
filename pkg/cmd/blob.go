package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/storage/blob"
)

var (
	blobCmd = &cobra.Command{
		Use:   "blob",
		Short: "Blob storage related commands",
	}

	blobListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered blob backends",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered blob types:")

			for _, t := range blob.GetRegisteredTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	blobObjectsCmd = &cobra.Command{
		Use:     "objects",
		Short:   "list stored objects of the configured backend",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := blob.New(cmd.Context(), configs.GetConfig())
			if err != nil {
				return err
			}

			var n int

			err = store.List(cmd.Context(), func(o blob.Object) error {
				n++

				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", o.Key, o.Size, o.ModTime.Format("2006-01-02 15:04:05"))

				return err
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d objects in %s store\n", n, store.Type())

			return nil
		},
	}
)

// registerBlobCommands 注册 blob 相关命令.
func registerBlobCommands() {
	rootCmd.AddCommand(blobCmd)
	blobCmd.AddCommand(blobListCmd)
	blobCmd.AddCommand(blobObjectsCmd)
}
