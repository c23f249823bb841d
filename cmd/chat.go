package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingua/internal/backend"
	"github.com/abhisek/lingua/internal/quiz"
	"github.com/abhisek/lingua/internal/session"
	"github.com/abhisek/lingua/internal/store"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a tutoring conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

func runChat(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	var history store.ResultRepo
	if repo, err := store.OpenSQLite(cfg.DBPath); err != nil {
		log.WithError(err).Warn("quiz history disabled")
	} else {
		history = repo
		defer repo.Close()
	}

	client := backend.NewClient(cfg.BackendURL, cfg.HTTPTimeout, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	orch := session.NewOrchestrator(client, client,
		session.WithLogger(log),
		session.WithHistory(history),
		session.WithBaseContext(ctx),
		session.WithCallbacks(session.Callbacks{
			OnChunk: func(text string) { fmt.Print(text) },
			OnTurnDone: func(turn session.Turn) {
				if turn.Err != "" {
					fmt.Printf("\n[connection lost: %s]\n", turn.Err)
					return
				}
				fmt.Println()
			},
			OnAutoAdvance: func(string) { fmt.Println() },
		}),
	)
	defer orch.Close()

	fmt.Println("Lingua. Type a message to chat, /quit to exit.")
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if line == "" {
			continue
		}

		if err := orch.SendText(ctx, line); err != nil {
			var perr *session.ErrProtocol
			if errors.As(err, &perr) {
				fmt.Println(perr.Reason)
				continue
			}
			fmt.Printf("[%v]\n", err)
			continue
		}

		live := orch.LiveQuiz()
		switch {
		case live == nil:
		case live.Status == quiz.StatusReady:
			runQuiz(ctx, orch, live, in, cfg.SampleRate)
		case live.Status == quiz.StatusError:
			fmt.Printf("[quiz could not be prepared: %s]\n", live.Err)
		}
	}
}
