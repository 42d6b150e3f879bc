package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/endorses/prowl/cmd/rules"
	"github.com/endorses/prowl/cmd/scan"
	"github.com/endorses/prowl/internal/pkg/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "prowl",
	Short: "prowl matches detection rules against traffic",
	Long: `prowl is the rule-matching core of a network intrusion detection
engine: it selects one fast pattern per signature, compiles them into
multi-pattern matchers per buffer context, and reports which signatures
are candidates for full evaluation on each packet.`,
	Version: version.GetFullVersion(),
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func addSubCommandPalattes() {
	rootCmd.AddCommand(rules.RulesCmd)
	rootCmd.AddCommand(scan.ScanCmd)
}

func init() {
	cobra.OnInitialize(initConfig)

	addSubCommandPalattes()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.prowl.yaml)")
	rootCmd.PersistentFlags().String("mpm-backend", "", "multi-pattern matcher backend (aho, cloudflare)")
	rootCmd.PersistentFlags().Bool("nocase", false, "match patterns case-insensitively")

	viper.BindPFlag("mpm.backend", rootCmd.PersistentFlags().Lookup("mpm-backend"))
	viper.BindPFlag("mpm.nocase", rootCmd.PersistentFlags().Lookup("nocase"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".prowl")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
