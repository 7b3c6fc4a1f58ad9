package cmd

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/sharevault/pkg/configs"
)

var (
	showSecrets bool

	configCmd = &cobra.Command{
		Use:               "config",
		Short:             "inspect the effective configuration",
		PersistentPreRunE: loadConfig,
	}

	pathCmd = &cobra.Command{
		Use:   "path",
		Short: "print the path of the current config file",
		Run: func(cmd *cobra.Command, args []string) {
			if used := configs.GetViper().ConfigFileUsed(); used != "" {
				fmt.Fprintln(cmd.OutOrStdout(), used)

				return
			}

			fmt.Fprintln(cmd.OutOrStdout(), "no config file used, running on defaults and "+configs.EnvPrefix+"_* env")
		},
	}

	// 密钥默认打码，--show-secrets 才输出原值
	debugCmd = &cobra.Command{
		Use:   "debug",
		Short: "print the effective config as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				configs.GetViper().Debug()
			}

			cfg := *configs.GetConfig()
			if !showSecrets {
				cfg = cfg.Redacted()
			}

			b, err := sonic.ConfigStd.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(b))

			return nil
		},
	}

	// loadConfig 已经做过校验，能走到这里就说明配置合法
	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "load and validate the config, exit non-zero on error",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := configs.GetConfig()
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: db=%s blob=%s kv=%s events=%t\n",
				cfg.DB.Type, cfg.Blob.Type, cfg.KV.Type, cfg.Events.Enabled)
		},
	}
)

// registerConfigsCommands 注册 config 子命令.
func registerConfigsCommands() {
	debugCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secrets and passwords unmasked")

	configCmd.AddCommand(pathCmd, debugCmd, validateCmd)
	rootCmd.AddCommand(configCmd)
}
