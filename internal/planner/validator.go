package planner

import (
	"errors"
	"fmt"

	"github.com/mkrall/clerk/pkg/models"
)

// ErrEmptyPlan is returned when the model produces no todos.
var ErrEmptyPlan = errors.New("planner: plan contains no todos")

// validate checks structural soundness: non-empty, unique ids, titles
// present, and dependencies that point at real todos. Cycles are the
// dependency resolver's concern, not the planner's.
func validate(plan *models.Plan) error {
	if len(plan.Todos) == 0 {
		return ErrEmptyPlan
	}

	ids := make(map[string]bool, len(plan.Todos))
	for _, todo := range plan.Todos {
		if todo.Title == "" {
			return fmt.Errorf("planner: todo %s has no title", todo.ID)
		}
		if ids[todo.ID] {
			return fmt.Errorf("planner: duplicate todo id %s", todo.ID)
		}
		ids[todo.ID] = true
	}

	for _, todo := range plan.Todos {
		for _, dep := range todo.Dependencies {
			if dep == todo.ID {
				return fmt.Errorf("planner: todo %s depends on itself", todo.ID)
			}
			if !ids[dep] {
				return fmt.Errorf("planner: todo %s depends on unknown id %s", todo.ID, dep)
			}
		}
	}
	return nil
}
