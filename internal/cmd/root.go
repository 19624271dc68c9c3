// Package cmd implements the jarvis command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"jarvis/internal/config"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	envFile    string
	logLevel   string

	cfg *config.Config
	log *slog.Logger
}

// NewRootCommand returns the jarvis root command with all subcommands.
func NewRootCommand(version string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "jarvis",
		Short:   "Wake-word voice assistant",
		Long:    `Jarvis waits for its wake word, listens to the question, and answers out loud. Say the wake word while it talks to cut it short.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "File with API keys as KEY=value lines")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	// 主循环
	rootCmd.AddCommand(newRunCommand(opts))

	// 单个服务的调试命令
	rootCmd.AddCommand(newSayCommand(opts))
	rootCmd.AddCommand(newTranscribeCommand(opts))
	rootCmd.AddCommand(newAskCommand(opts))
	rootCmd.AddCommand(newVADCommand(opts))

	// 本地状态
	rootCmd.AddCommand(newUsersCommand(opts))
	rootCmd.AddCommand(newDevicesCommand(opts))

	return rootCmd
}

// load reads the env file and config, then installs the logger.
func (o *globalOptions) load(logOut io.Writer) error {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if o.logLevel != "" {
		cfg.Log.Level = config.LogLevel(o.logLevel)
		if !cfg.Log.Level.IsValid() {
			return fmt.Errorf("invalid --log-level %q", o.logLevel)
		}
	}

	o.cfg = cfg
	o.log = newLogger(cfg.Log, logOut)
	slog.SetDefault(o.log)
	return nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch cfg.Level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if cfg.Format == config.FormatJSON {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
