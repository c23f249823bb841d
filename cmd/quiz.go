package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/lingua/internal/audio"
	"github.com/abhisek/lingua/internal/quiz"
	"github.com/abhisek/lingua/internal/session"
)

// runQuiz renders the live quiz, collects an answer from the terminal, and
// submits it. The auto-advance resumes the conversation afterwards.
func runQuiz(ctx context.Context, orch *session.Orchestrator, inst *quiz.Instance, in *bufio.Scanner, sampleRate int) {
	spec := quiz.SpecFor(inst.Variant)
	renderQuiz(inst)
	if spec.RevealDelay > 0 {
		time.Sleep(spec.RevealDelay)
	}

	ans, ok := collectAnswer(inst, in, sampleRate)
	if !ok {
		return
	}

	res, err := orch.Submit(ctx, ans)
	if err != nil {
		var perr *session.ErrProtocol
		if errors.As(err, &perr) {
			fmt.Println(perr.Reason)
			return
		}
		fmt.Printf("[could not score your answer: %v]\n", err)
		return
	}
	renderResult(res)
}

func renderQuiz(inst *quiz.Instance) {
	fmt.Println()
	switch d := inst.Data.(type) {
	case quiz.UnitCompletionData:
		fmt.Println("Fill in the blank:")
		fmt.Println("  " + d.Sentence)
		if d.Hint != "" {
			fmt.Println("  hint: " + d.Hint)
		}
	case quiz.KeywordMatchData:
		fmt.Println("Match each Spanish word to its English meaning:")
		for i, p := range d.Pairs {
			fmt.Printf("  %d. %s\n", i+1, p.Spanish)
		}
		fmt.Println("Options:")
		for _, e := range shuffledEnglish(d.Pairs) {
			fmt.Println("  - " + e)
		}
	case quiz.ImageDetectionData:
		fmt.Println("What object is pictured? Answer in Spanish.")
		if d.ImageURL != "" {
			fmt.Println("  image: " + d.ImageURL)
		}
	case quiz.PodcastData:
		fmt.Println("Listen to the conversation:")
		fmt.Println(indent(d.Conversation, "  "))
		fmt.Println("Question: " + d.Question)
	case quiz.PronunciationData:
		fmt.Println("Read this sentence aloud:")
		fmt.Println("  " + d.Sentence)
	case quiz.ReadingData:
		if d.ArticleTitle != "" {
			fmt.Println(d.ArticleTitle)
		}
		fmt.Println(indent(d.ArticleText, "  "))
		fmt.Println("Question: " + d.Question)
	}
}

func collectAnswer(inst *quiz.Instance, in *bufio.Scanner, sampleRate int) (quiz.Answer, bool) {
	switch d := inst.Data.(type) {
	case quiz.KeywordMatchData:
		m := quiz.MatchAnswer{}
		for _, p := range d.Pairs {
			fmt.Printf("%s = ", p.Spanish)
			if !in.Scan() {
				return nil, false
			}
			m.Matches = append(m.Matches, quiz.Pair{
				Spanish: p.Spanish,
				English: strings.TrimSpace(in.Text()),
			})
		}
		return m, true

	case quiz.PronunciationData:
		return recordAnswer(in, sampleRate)

	default:
		fmt.Print("your answer: ")
		if !in.Scan() {
			return nil, false
		}
		return quiz.TextAnswer{Text: strings.TrimSpace(in.Text())}, true
	}
}

func recordAnswer(in *bufio.Scanner, sampleRate int) (quiz.Answer, bool) {
	rec, err := audio.NewRecorder(sampleRate)
	if err != nil {
		fmt.Printf("[microphone unavailable: %v]\n", err)
		return nil, false
	}
	defer rec.Close()

	fmt.Print("press Enter to start recording")
	if !in.Scan() {
		return nil, false
	}
	if err := rec.Start(); err != nil {
		fmt.Printf("[could not start recording: %v]\n", err)
		return nil, false
	}
	fmt.Print("recording... press Enter to stop")
	if !in.Scan() {
		rec.Stop()
		return nil, false
	}
	clip, err := rec.Stop()
	if err != nil {
		fmt.Printf("[recording failed: %v]\n", err)
		return nil, false
	}
	if clip.Empty() {
		fmt.Println("[nothing recorded]")
		return nil, false
	}
	fmt.Printf("captured %.1fs of audio\n", clip.Duration().Seconds())
	return quiz.AudioAnswer{WAV: clip.WAV()}, true
}

func renderResult(res quiz.Result) {
	switch r := res.(type) {
	case quiz.BinaryResult:
		if r.Correct {
			fmt.Println("Correct!")
		} else {
			fmt.Println("Not quite.")
			if r.CorrectAnswer != "" {
				fmt.Println("  answer: " + r.CorrectAnswer)
			}
		}
		if r.FeedbackText != "" {
			fmt.Println("  " + r.FeedbackText)
		}
	case quiz.KeywordMatchResult:
		fmt.Printf("%d of %d correct\n", r.CorrectCount, r.Total)
		for _, m := range r.Results {
			mark := "ok"
			if !m.IsCorrect {
				mark = "wrong, should be " + m.CorrectEnglish
			}
			fmt.Printf("  %s = %s (%s)\n", m.Spanish, m.English, mark)
		}
	case quiz.PronunciationResult:
		fmt.Printf("Pronunciation %.0f/100 (accuracy %.0f, fluency %.0f, completeness %.0f)\n",
			r.Pronunciation, r.Accuracy, r.Fluency, r.Completeness)
		if r.UserSpoke != "" {
			fmt.Println("  heard: " + r.UserSpoke)
		}
	case quiz.ReadingResult:
		fmt.Printf("Comprehension %.0f/10\n", r.Grade)
		if r.FeedbackText != "" {
			fmt.Println("  " + r.FeedbackText)
		}
	}
	if res.Passed() {
		fmt.Println("Nice work!")
	}
}

// shuffledEnglish presents the options in a stable but non-matching order
// so the first option is never trivially the first answer.
func shuffledEnglish(pairs []quiz.Pair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[(i+len(pairs)/2)%len(pairs)] = p.English
	}
	return out
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
