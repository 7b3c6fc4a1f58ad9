package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/configs"
	kv "github.com/yeisme/sharevault/pkg/internal/storage/kv"
)

var (
	kvCmd = &cobra.Command{
		Use:     "kv",
		Short:   "Key-Value store and response cache commands",
		Aliases: []string{"keyvalue"},
	}

	kvListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered kv types",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered kv types:")
			for _, t := range kv.GetRegisteredKVTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	kvKeysCmd = &cobra.Command{
		Use:     "keys [pattern]",
		Short:   "list keys of the configured kv store matching a glob",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := kv.NewKVClient(cmd.Context(), &configs.GetConfig().KV)
			if err != nil {
				return err
			}
			defer client.Close()

			var pattern string
			if len(args) == 1 {
				pattern = args[0]
			}

			keys, err := client.Keys(cmd.Context(), pattern)
			if err != nil {
				return err
			}

			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d keys in %s store\n", len(keys), client.Type())

			return nil
		},
	}

	// 运行中的服务共享同一个 KV 时，bump 之后旧的缓存响应不再命中
	kvInvalidateCmd = &cobra.Command{
		Use:     "invalidate",
		Short:   "invalidate cached resource listings",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := kv.NewKVClient(cmd.Context(), &configs.GetConfig().KV)
			if err != nil {
				return err
			}
			defer client.Close()

			gen, err := cache.NewCache(client).Bump(cmd.Context(), cache.NamespaceResources)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s cache generation is now %d\n", cache.NamespaceResources, gen)

			return nil
		},
	}
)

// registerKVCommands 注册 KV 相关命令.
func registerKVCommands() {
	rootCmd.AddCommand(kvCmd)
	kvCmd.AddCommand(kvListCmd, kvKeysCmd, kvInvalidateCmd)
}
