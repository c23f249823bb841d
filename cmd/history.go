package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingua/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent quiz results and per-variant accuracy",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		repo, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer repo.Close()

		recent, err := repo.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			fmt.Println("No quiz results yet.")
			return nil
		}

		fmt.Println("Recent quizzes:")
		for _, rec := range recent {
			mark := "fail"
			if rec.Passed {
				mark = "pass"
			}
			fmt.Printf("  %s  %-16s %s  %q\n",
				rec.CreatedAt.Format("2006-01-02 15:04"), rec.Variant, mark, rec.Answer)
		}

		stats, err := repo.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println("\nAccuracy by variant:")
		for _, s := range stats {
			fmt.Printf("  %-16s %3d attempts  %3.0f%% pass  avg score %.2f\n",
				s.Variant, s.Attempts, s.Accuracy()*100, s.AvgScore)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "How many recent results to show")
}
