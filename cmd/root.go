package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/snf-deals/internal/config"
)

var cfg *config.Config

// Persistent flags shared by every subcommand. Set values win over the
// config file and SNFDEALS_* environment.
var globalFlags struct {
	configFile string
	logLevel   string
	logFormat  string
}

var rootCmd = &cobra.Command{
	Use:   "snf-deals",
	Short: "Skilled-nursing deal facility data reconciliation",
	Long:  "Keeps deal columns, facility rows, and extraction documents in step, stores monthly census and financials, and loads CMS quality measures and the contract taxonomy.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
}

// setup loads settings, applies flag overrides, and installs the global logger.
func setup(cmd *cobra.Command) error {
	c, err := config.LoadFile(globalFlags.configFile)
	if err != nil {
		return eris.Wrap(err, "snf-deals: settings")
	}
	applyLogOverrides(cmd, &c.Log)
	if err := config.InitLogger(c.Log); err != nil {
		return eris.Wrap(err, "snf-deals: logger")
	}
	cfg = c

	zap.L().Debug("settings loaded",
		zap.String("command", cmd.CommandPath()),
		zap.String("config_file", globalFlags.configFile),
		zap.String("log_level", c.Log.Level),
	)
	return nil
}

// applyLogOverrides copies --log-level and --log-format onto lc when given.
func applyLogOverrides(cmd *cobra.Command, lc *config.LogConfig) {
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		lc.Level = globalFlags.logLevel
	}
	if f := cmd.Flags().Lookup("log-format"); f != nil && f.Changed {
		lc.Format = globalFlags.logFormat
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globalFlags.configFile, "config", "", "config file (default ./config.yaml)")
	pf.StringVar(&globalFlags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	pf.StringVar(&globalFlags.logFormat, "log-format", "", "override log.format (json or console)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
