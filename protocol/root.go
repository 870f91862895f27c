package protocol

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/types"
	"github.com/datazip-inc/streamcatchup/utils"
	"github.com/datazip-inc/streamcatchup/utils/logger"
)

var (
	configPath   string
	batchSize    int
	noSave       bool
	outputFormat string
	metricsAddr  string
	logLevel     string

	config   *types.Config
	commands = []*cobra.Command{}
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "catchup",
	Short: "stream catch-up runner",
	Long:  "catchup replays an ordered source (log file, SQL event table or parquet file) into persisted projections",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		viper.SetDefault(constants.ConfigFolder, os.TempDir())
		if configPath != "not-set" {
			viper.Set(constants.ConfigFolder, filepath.Dir(configPath))
		}
		viper.Set(constants.NoLogFile, noSave)
		viper.Set(constants.OutputFormat, outputFormat)
		if logLevel != "" {
			viper.Set(constants.LogLevel, logLevel)
		}

		// logger uses CONFIG_FOLDER
		logger.Init()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}

		if ok := utils.IsValidSubcommand(commands, args[0]); !ok {
			return fmt.Errorf("'%s' is an invalid command. Use 'catchup --help' to display usage guide", args[0])
		}
		return nil
	},
}

func CreateRootCommand() *cobra.Command {
	return RootCmd
}

// loadConfig reads the config file through viper; CATCHUP_ prefixed
// environment variables override file values (CATCHUP_SOURCE_DSN for source.dsn).
func loadConfig() (*types.Config, error) {
	if configPath == "not-set" {
		return nil, fmt.Errorf("%w: --config is required", constants.ErrInvalidConfig)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config[%s]: %s", configPath, err)
	}

	cfg := &types.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config[%s]: %s", configPath, err)
	}
	if batchSize > 0 {
		cfg.BatchSize = batchSize
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}

	if err := utils.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// requireConfig is the PreRunE of every command working on a config
func requireConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	config = cfg
	return nil
}

func init() {
	commands = append(commands, specCmd, checkCmd, runCmd, pollCmd)
	RootCmd.AddCommand(commands...)

	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "", "not-set", "(Required) Config for the catch-up run")
	RootCmd.PersistentFlags().IntVarP(&batchSize, "batch-size", "", 0, "(Optional) Overrides the configured batch size")
	RootCmd.PersistentFlags().BoolVarP(&noSave, "no-save", "", false, "(Optional) Flag to skip writing logs and artifacts to the config folder")
	RootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "(Optional) Output format of printed results: json or yaml")
	RootCmd.PersistentFlags().StringVarP(&metricsAddr, "metrics-addr", "", "", "(Optional) Address serving prometheus metrics while polling")
	RootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "", "(Optional) Log level: debug, info, warn, error")
	// Disable Cobra CLI's built-in usage and error handling
	RootCmd.SilenceUsage = true
	RootCmd.SilenceErrors = true
}
