package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"leadpilot-backend/internal/config"
	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/scoring"

	"github.com/spf13/cobra"
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score lead fields offline",
		Long:  `Runs the scoring rules on the given fields and prints the breakdown and grade.`,
		RunE:  runScore,
	}
	f := cmd.Flags()
	f.String("name", "", "Lead name")
	f.String("email", "", "Lead email")
	f.String("phone", "", "Lead phone")
	f.String("budget", "", "Budget text")
	f.String("timeline", "", "Timeline text")
	f.String("service", "", "Service interest")
	f.Int("turns", 1, "Number of user turns in the conversation")
	f.String("message", "", "Latest user message, checked for intent keywords")
	f.Int("hot", models.DefaultHotThreshold, "HOT threshold")
	f.Int("warm", models.DefaultWarmThreshold, "WARM threshold")
	f.Bool("json", false, "Print the result as JSON")
	return cmd
}

func runScore(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	str := func(name string) string {
		v, _ := f.GetString(name)
		return strings.TrimSpace(v)
	}
	turns, _ := f.GetInt("turns")
	hot, _ := f.GetInt("hot")
	warm, _ := f.GetInt("warm")
	asJSON, _ := f.GetBool("json")

	if err := config.ValidateThresholds(hot, warm); err != nil {
		return err
	}

	fields := models.LeadFields{
		Name:            str("name"),
		Email:           str("email"),
		Phone:           str("phone"),
		Budget:          str("budget"),
		Timeline:        str("timeline"),
		ServiceInterest: str("service"),
	}
	result := scoring.NewEngine(hot, warm).Score(fields, scoring.Signals{
		UserTurns:      turns,
		IntentKeywords: scoring.MatchIntent(str("message")),
	})

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	b := result.Breakdown
	fmt.Fprintf(out, "contact     %3d\n", b.Contact)
	fmt.Fprintf(out, "budget      %3d\n", b.Budget)
	fmt.Fprintf(out, "timeline    %3d\n", b.Timeline)
	fmt.Fprintf(out, "service     %3d\n", b.Service)
	fmt.Fprintf(out, "engagement  %3d\n", b.Engagement)
	fmt.Fprintf(out, "intent      %3d\n", b.Intent)
	fmt.Fprintf(out, "score       %3d/100  %s\n", result.Score, result.Grade)
	return nil
}
