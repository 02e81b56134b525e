package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maia-os/covalue-core/internal/config"
)

var cfg *config.Config

// Version information, set by main via SetVersion.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "maiacore",
	Short: "Local CoValue backend core",
	Long: `maiacore runs a single node of the CoValue backend core: a durable
store, the in-memory runtime registry, and the CRUD dispatcher the rest of
an application talks to. It does not speak the CRDT sync protocol or expose
an operation-API transport; those are external collaborators.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "Config file path (YAML/JSON/TOML)")
	viper.BindPFlag("config_file", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.PersistentFlags().String("store-driver", "", "Store dialect: postgres or sqlite (COVALUE_STORE_DRIVER)")
	rootCmd.PersistentFlags().String("database-url", "", "Store DSN (COVALUE_DATABASE_URL)")
	rootCmd.PersistentFlags().String("node-id", "", "Runtime node identity (COVALUE_NODE_ID)")
	rootCmd.PersistentFlags().String("system-spark", "", "Designated system spark name (COVALUE_SYSTEM_SPARK)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (COVALUE_DEBUG)")

	viper.BindPFlag("store_driver", rootCmd.PersistentFlags().Lookup("store-driver"))
	viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))
	viper.BindPFlag("node_id", rootCmd.PersistentFlags().Lookup("node-id"))
	viper.BindPFlag("system_spark", rootCmd.PersistentFlags().Lookup("system-spark"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile := viper.GetString("config_file"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("maiacore")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.maia")
		viper.AddConfigPath("/etc/maia")
	}
	_ = viper.ReadInConfig()
}

// GetConfig returns the loaded configuration. Valid only after the root
// command's PersistentPreRunE has run.
func GetConfig() *config.Config {
	return cfg
}

// SetVersion sets version information reported by the version command.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
