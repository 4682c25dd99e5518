/*
Package cmd implements the command-line interface for the a2a-runtime
project.  It provides commands for serving an agent, inspecting agent cards
and sending messages to running agents.
*/
package cmd

import (
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentwire/a2a-runtime/pkg/runtime"
)

var (
	projectName = "a2a-runtime"
	cfgFile     string

	rootCmd = &cobra.Command{
		Use:   "a2a-runtime",
		Short: "A Go runtime for the Agent-to-Agent (A2A) protocol",
		Long:  longRoot,
	}
)

/*
Execute is the main entry point for the CLI.  It initializes the root command
and executes it.
*/
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is $HOME/."+projectName+"/config.yml)",
	)
}

/*
initConfig seeds every recognized key with its default, then layers the
config file (when one exists) and A2A_-prefixed environment variables on top.
A missing config file is fine; a malformed one is fatal.
*/
func initConfig() {
	runtime.RegisterDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(home + "/." + projectName)
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yml")
	}

	viper.SetEnvPrefix("A2A")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError

		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			log.Fatal("failed to read config file", "error", err)
		}
	}
}

/*
longRoot contains the detailed help text for the root command.
*/
var longRoot = `
a2a-runtime is a Go implementation of the Agent-to-Agent (A2A) protocol.
It serves agents over JSON-RPC with SSE streaming, delivers push
notifications to webhooks, and ships a resilient client for talking to
other agents.
`
