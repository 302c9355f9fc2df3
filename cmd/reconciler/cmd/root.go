package cmd

import (
	"fmt"
	"os"
	"strings"

	"fintrack-reconciliation-service/cmd/reconciler/config"
	"fintrack-reconciliation-service/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Personal finance ingestion and duplicate reconciliation",
	Long: `Reconciler ingests scraped financial records (transactions, stocks,
mutual funds, fixed deposits, EMIs, bank accounts, long-term funds),
deduplicates them against what is already stored, and tracks which source
records have been synced.

Examples:
  reconciler reconcile --input batch.json
  reconciler sync-status --owner 1
  reconciler check-sync --owner 1 --data-type stocks --source zerodha --identifier RELIANCE
  reconciler duplicates --owner 1 --tier high`,
	Version: getVersionString(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.NewLogger(config.BuildLoggerConfig(verbose))
		if err != nil {
			return err
		}
		logger.SetGlobalLogger(log)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "fintrack.db", "sqlite database file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	// A .env file is optional; real environments set variables directly.
	godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	viper.SetEnvPrefix("FINTRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func databasePath() string {
	if env := viper.GetString("db"); env != "" {
		return env
	}
	return dbPath
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
