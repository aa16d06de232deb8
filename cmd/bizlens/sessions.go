package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bizlens/internal/report"
	"bizlens/internal/session"
	"bizlens/internal/types"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List past analysis sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := session.Open(baseDir)
		if err != nil {
			return err
		}
		defer sessions.Close()

		runs, err := sessions.List(20)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No sessions yet.")
			return nil
		}

		for _, run := range runs {
			fmt.Printf("%s  %-10s  %-20s  %s\n",
				run.CreatedAt.Format("2006-01-02 15:04"), run.Mode, run.Company, run.Dir)
		}
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <results.json> [output.md]",
	Short: "Render a saved result envelope to markdown",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var env types.ResultEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("parse results: %w", err)
		}

		if len(args) == 2 {
			return report.Write(env, args[1])
		}
		fmt.Print(report.Render(env))
		return nil
	},
}
