package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mkrall/clerk/internal/state"
	"github.com/mkrall/clerk/pkg/models"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show recent runs or one run's TODO breakdown",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := state.Open(state.DefaultDBPath())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}

		if len(args) == 1 {
			return showRun(db, args[0])
		}
		return listRuns(db)
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "How many runs to list")
}

func listRuns(db *state.DB) error {
	runs, err := db.ListRuns(statusLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, run := range runs {
		statusColor(run.Status).Printf("%-12s", run.Status)
		fmt.Printf(" %s  %s", run.StartedAt.Local().Format("2006-01-02 15:04"), run.Request)
		color.New(color.Faint).Printf("  [%s]\n", run.ID)
	}
	return nil
}

func showRun(db *state.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	todos, err := db.TodosForRun(id)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", run.Request)
	statusColor(run.Status).Printf("%s", run.Status)
	fmt.Printf(", %d tokens, started %s\n\n", run.TokensUsed, run.StartedAt.Local().Format("2006-01-02 15:04"))

	for _, todo := range todos {
		switch todo.Status {
		case models.TodoStatusCompleted:
			color.Green("✓ %s", todo.Title)
		case models.TodoStatusFailed:
			color.Red("✗ %s: %s", todo.Title, todo.Error)
		case models.TodoStatusSkipped:
			color.Yellow("- %s (%s)", todo.Title, todo.Error)
		default:
			fmt.Printf("· %s (%s)\n", todo.Title, todo.Status)
		}
	}
	return nil
}

func statusColor(status string) *color.Color {
	switch status {
	case state.RunStatusCompleted:
		return color.New(color.FgGreen)
	case state.RunStatusFailed:
		return color.New(color.FgRed)
	case state.RunStatusInterrupted:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}
