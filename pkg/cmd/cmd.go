// Package cmd contains the command line applications for the project.
package cmd

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yeisme/sharevault/pkg/configs"
)

var (
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:           "sharevault",
		Short:         "ShareVault resource sharing service",
		Long:          "ShareVault 上传文件并附带标题、描述与标签，供所有人检索；所有者可以修改与删除自己的资源.",
		Version:       configs.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// --debug 通过环境变量覆盖 server.debug，对所有读取配置的子命令生效
			if debug {
				_ = os.Setenv(configs.EnvPrefix+"_SERVER_DEBUG", strconv.FormatBool(debug))
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	// 子命令自己的 PersistentPreRunE 与根命令的都要执行
	cobra.EnableTraverseRunHooks = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug mode")

	registerServeCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
	registerBlobCommands()
}

// loadConfig 子命令共用的配置加载.
func loadConfig(*cobra.Command, []string) error {
	return configs.InitConfig(configPath)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
