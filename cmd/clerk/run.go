package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mkrall/clerk/internal/controller"
	"github.com/mkrall/clerk/internal/interrupt"
	"github.com/mkrall/clerk/internal/planner"
	"github.com/mkrall/clerk/internal/state"
	"github.com/mkrall/clerk/pkg/models"
)

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Plan and execute a request end to end",
	Long: `Decomposes the request into a plan, resolves dependency order, and
executes every TODO through the tool-calling agent. Progress and outcomes
are recorded in the run history.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(strings.Join(args, " "))
	},
}

func runRequest(request string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := context.Background()

	plan, err := planner.New(e.client).Plan(ctx, request)
	if err != nil {
		return err
	}
	printPlan(plan)

	run, err := e.store.CreateRun(request, plan.Complexity)
	if err != nil {
		return err
	}
	e.ctrl.SetRecorder(e.store.Recorder(run.ID))

	summary, execErr := e.ctrl.ExecuteAll(ctx, plan)

	status := state.RunStatusCompleted
	switch {
	case interrupt.IsInterrupted(execErr):
		status = state.RunStatusInterrupted
	case execErr != nil || summary.Failed > 0:
		status = state.RunStatusFailed
	}
	input, output := e.client.Tracker().Total()
	if err := e.store.FinishRun(run.ID, status, input+output); err != nil {
		fmt.Fprintf(os.Stderr, "recording run outcome: %v\n", err)
	}

	printSummary(plan, summary)
	color.New(color.Faint).Printf("run %s, %d tokens\n", run.ID, input+output)

	if interrupt.IsInterrupted(execErr) {
		return fmt.Errorf("run interrupted")
	}
	if execErr != nil {
		return execErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d todos failed", summary.Failed, len(plan.Todos))
	}
	return nil
}

func printPlan(plan *models.Plan) {
	color.New(color.Bold).Printf("Plan (%s, est. %s):\n", plan.Complexity, plan.EstimatedTime)
	for i, todo := range plan.Todos {
		fmt.Printf("  %d. %s", i+1, todo.Title)
		if len(todo.Dependencies) > 0 {
			color.New(color.Faint).Printf("  (after %s)", strings.Join(todo.Dependencies, ", "))
		}
		fmt.Println()
	}
	fmt.Println()
}

func printSummary(plan *models.Plan, summary *controller.Summary) {
	for _, todo := range plan.Todos {
		switch todo.Status {
		case models.TodoStatusCompleted:
			color.Green("✓ %s", todo.Title)
		case models.TodoStatusFailed:
			color.Red("✗ %s: %s", todo.Title, todo.Error)
		case models.TodoStatusSkipped:
			color.Yellow("- %s (%s)", todo.Title, todo.Error)
		default:
			color.New(color.Faint).Printf("· %s (%s)\n", todo.Title, todo.Status)
		}
	}
	fmt.Println()
	fmt.Println(summary.Report())
}
