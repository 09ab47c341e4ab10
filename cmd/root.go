package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	configx "github.com/tanpawarit/chative-commerce/pkg/config"
	logx "github.com/tanpawarit/chative-commerce/pkg/logger"
)

var (
	envFile string
	verbose bool
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "chative",
	Short: "Conversational shop assistant",
	Long: `Chat with a shop assistant that searches the product catalog and takes
orders in the same conversation.

  chative chat                 # interactive session in the terminal
  chative serve                # HTTP API on HTTP_ADDR
  chative index                # (re)build the product vector index
  chative migrate              # create the order tables
  chative orders get ORD-1234  # look up a placed order`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configx.SetEnvFile(envFile)
		conf, err := configx.New[logx.Config]("LOG")
		if err != nil {
			return err
		}
		if verbose {
			conf.Debug = true
		}
		logx.Init(*conf)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
