package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/philby/internal/config"
	"github.com/MimeLyc/philby/internal/human"
	"github.com/MimeLyc/philby/internal/service"
	"github.com/MimeLyc/philby/pkg/log"
)

// cli holds the global flags and the process streams shared by subcommands
type cli struct {
	in        *os.File
	workspace string
	envFile   string
	logLevel  string
	logFile   string
	verbose   bool

	closeLog func() error
}

func newRootCmd(in *os.File) *cobra.Command {
	c := &cli{in: in}

	root := &cobra.Command{
		Use:   "philby",
		Short: "File-driven decision-cycle agent",
		Long: `philby lets a language model work through a task in a local workspace,
one action per cycle. Each cycle it reads the task, the standing purpose and
the last outcome, asks the model for a single decision, executes it and
records the result.

Create a task with "philby task", then start the loop with "philby run".
Drop a STOP file (or run "philby stop") to end the loop after the current cycle.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setupLogging,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.closeLog != nil {
				_ = c.closeLog()
			}
		},
	}

	root.PersistentFlags().StringVarP(&c.workspace, "workspace", "w", "", "Workspace directory (default: $PHILBY_WORKSPACE or current)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (default: $LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&c.logFile, "log-file", "", "Append logs to this file instead of stderr")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Shortcut for --log-level debug")

	root.AddCommand(taskCmd(c))
	root.AddCommand(purposeCmd(c))
	root.AddCommand(runCmd(c))
	root.AddCommand(stopCmd(c))
	root.AddCommand(historyCmd(c))
	root.AddCommand(extractCmd(c))
	root.AddCommand(toolsCmd(c))
	root.AddCommand(settingsCmd(c))
	root.AddCommand(serveCmd(c))
	return root
}

func (c *cli) setupLogging(cmd *cobra.Command, args []string) error {
	level := c.logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if c.verbose {
		level = "debug"
	}

	if c.logFile == "" {
		log.InitLogger(log.ParseLevel(level))
		return nil
	}
	fileLogger, err := log.NewFileLogger(c.logFile, log.ParseLevel(level))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.SetLogger(fileLogger.Logger)
	c.closeLog = fileLogger.Close
	return nil
}

func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.envFile, config.WithWorkspace(c.workspace))
	if err != nil {
		return nil, service.WrapError(err, service.ErrConfig, "load configuration")
	}
	return cfg, nil
}

// openService loads the config and opens the workspace. The caller closes it.
func (c *cli) openService(cmd *cobra.Command) (*service.AgentService, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	var operator human.Channel
	if c.in != nil {
		operator = human.Terminal(c.in, cmd.OutOrStdout())
	}
	return service.NewAgentService(*cfg, operator)
}
