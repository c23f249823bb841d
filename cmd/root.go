package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abhisek/lingua/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "lingua",
	Short: "AI Spanish tutor in the terminal",
	Long:  "Lingua is a conversational Spanish tutor that weaves quiz exercises into the chat.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("backend", "", "Tutor backend base URL (overrides LINGUA_BACKEND_URL)")
	rootCmd.PersistentFlags().String("db", "", "Path to the quiz history database (overrides LINGUA_DB)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig applies flag overrides on top of the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if u, _ := cmd.Flags().GetString("backend"); u != "" {
		cfg.BackendURL = u
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DBPath = p
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) *logrus.Entry {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return logrus.NewEntry(log)
}
