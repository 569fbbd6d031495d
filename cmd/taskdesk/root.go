package main

import (
	"github.com/spf13/cobra"

	"github.com/Strob0t/TaskDesk/internal/config"
)

// cli carries state from the root command to its subcommands.
type cli struct {
	cfg *config.Config

	configPath string
	baseURL    string
	token      string
	logLevel   string
	pageSize   int
}

// overrides returns the persistent flags the user actually set.
func (c *cli) overrides(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	flags := cmd.Flags()
	if flags.Changed("config") {
		o.ConfigPath = &c.configPath
	}
	if flags.Changed("base-url") {
		o.BaseURL = &c.baseURL
	}
	if flags.Changed("token") {
		o.Token = &c.token
	}
	if flags.Changed("log-level") {
		o.LogLevel = &c.logLevel
	}
	if flags.Changed("page-size") {
		o.PageSize = &c.pageSize
	}
	return o
}

// open builds the app for a command. Callers must Close it.
func (c *cli) open(cmd *cobra.Command) (*app, error) {
	return newApp(cmd.Context(), c.cfg, cmd.ErrOrStderr())
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "taskdesk",
		Short:        "Manage tasks and process spreadsheets on the TaskDesk backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			o := c.overrides(cmd)
			if cmd.Flags().Changed("addr") && cmd.Name() == "ui" {
				addr, _ := cmd.Flags().GetString("addr")
				o.UIAddr = &addr
			}
			cfg, err := config.LoadWithOverrides(o)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", config.DefaultConfigFile, "path to the YAML config file")
	pf.StringVar(&c.baseURL, "base-url", "", "backend base URL (overrides config)")
	pf.StringVar(&c.token, "token", "", "bearer token forwarded to the backend")
	pf.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.IntVar(&c.pageSize, "page-size", 0, "tasks per page")

	root.AddCommand(
		newTasksCmd(c),
		newProcessCmd(c),
		newUICmd(c),
		newStubBackendCmd(c),
	)
	return root
}
