package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskrank",
	Short: "Rank open vault tasks against your priorities",
	Long: `taskrank collects the open tasks in a markdown vault, asks a language model to
order them against the priorities section of the active note, and inserts the
chosen tasks as block embeds at the cursor.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configPath string
	vaultRoot  string
	logToFile  bool
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config JSON/JSONC")
	rootCmd.PersistentFlags().StringVar(&vaultRoot, "vault", "", "Vault root override")
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-file", false, "Write logs to <storage>/logs/taskrank.log instead of stderr")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
}

// reportedError 已经以提示形式展示给用户的错误
// reportedError wraps an error that was already shown to the user as a notice
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func main() {
	if err := rootCmd.Execute(); err != nil {
		var shown reportedError
		if !errors.As(err, &shown) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
