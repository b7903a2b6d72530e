package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"taskrank/internal/config"
	"taskrank/internal/priorities"
	"taskrank/internal/taskindex"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the background anchor index for the vault",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(currentAppOptions())
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.index.Rebuild(cmd.Context())
		if err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.catalog.T("index.rebuilt", stats.Documents, stats.Anchors, stats.Tasks))
		return nil
	},
}

var initModel string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .taskrank/config.json in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get current working directory: %w", err)
		}
		return runInit(cmd.OutOrStdout(), cwd, initModel)
	},
}

func init() {
	initCmd.Flags().StringVar(&initModel, "model", "", "Model to record in the project config")
}

func runInit(out io.Writer, dir, model string) error {
	path, created, err := config.InitProjectScaffold(dir)
	if err != nil {
		return err
	}
	if strings.TrimSpace(model) != "" {
		if err := config.WriteProviderModel(dir, model); err != nil {
			return fmt.Errorf("write provider model: %w", err)
		}
	}
	cfg, _ := config.Load(path)
	cat := catalogFor(cfg)
	if created {
		fmt.Fprintln(out, cat.T("init.created", path))
	} else {
		fmt.Fprintln(out, cat.T("init.exists", path))
	}
	return nil
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Show the resolved configuration and task index status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(currentAppOptions())
		if err != nil {
			return err
		}
		defer a.Close()
		writeDoctor(cmd.OutOrStdout(), a)
		return nil
	},
}

func writeDoctor(out io.Writer, a *app) {
	t := a.catalog.T
	row := func(label, value string) {
		fmt.Fprintf(out, "%-20s %s\n", label+":", value)
	}

	cfgPath := strings.TrimSpace(configPath)
	if cfgPath == "" {
		cfgPath = config.ProjectConfigPath(".")
	}
	row(t("doctor.vault"), a.cfg.Vault.Root)
	row(t("doctor.config"), cfgPath)
	row(t("doctor.model"), a.cfg.Provider.Model+" @ "+a.cfg.Provider.BaseURL)
	row(t("doctor.heading"), fmt.Sprintf("%s (%q)", a.cfg.Priorities.Heading, priorities.NormalizeHeading(a.cfg.Priorities.Heading)))
	row(t("doctor.strategy"), a.cfg.Collect.Strategy)

	var shape string
	if _, s, err := taskindex.Adapt(a.taskService()); err != nil {
		shape = err.Error()
	} else {
		shape = string(s)
	}
	if a.cfg.Collect.TaskExport != "" {
		shape += " (" + a.cfg.Collect.TaskExport + ")"
	}
	row(t("doctor.taskindex"), shape)

	key := t("doctor.missing")
	if a.cfg.Provider.APIKey != "" {
		key = t("doctor.set")
	}
	row(t("doctor.api_key"), key)
}
