package models

import (
	"fmt"
	"strings"
)

// Action is a user-initiated command the replica asks the authoritative node to apply.
type Action string

const (
	ActionTake   Action = "TAKE"
	ActionSkip   Action = "SKIP"
	ActionSnooze Action = "SNOOZE"
)

// Command channel paths, one per action kind.
const (
	PathTake   = "/take"
	PathSkip   = "/skip"
	PathSnooze = "/snooze"
)

// Actions returns every known action.
func Actions() []Action {
	return []Action{ActionTake, ActionSkip, ActionSnooze}
}

// Status returns the record status an action resolves to.
func (a Action) Status() (RecordStatus, error) {
	switch a {
	case ActionTake:
		return StatusTaken, nil
	case ActionSkip:
		return StatusSkipped, nil
	case ActionSnooze:
		return StatusSnoozed, nil
	}
	return "", fmt.Errorf("unknown action %q", string(a))
}

// Path returns the command channel path for the action.
func (a Action) Path() (string, error) {
	switch a {
	case ActionTake:
		return PathTake, nil
	case ActionSkip:
		return PathSkip, nil
	case ActionSnooze:
		return PathSnooze, nil
	}
	return "", fmt.Errorf("unknown action %q", string(a))
}

func (a Action) String() string {
	return string(a)
}

// ActionFromPath maps a command channel path back to its action.
func ActionFromPath(path string) (Action, error) {
	switch path {
	case PathTake:
		return ActionTake, nil
	case PathSkip:
		return ActionSkip, nil
	case PathSnooze:
		return ActionSnooze, nil
	}
	return "", fmt.Errorf("unknown command path %q", path)
}

// ParseAction accepts an action name in any case ("take", "TAKE").
func ParseAction(s string) (Action, error) {
	action := Action(strings.ToUpper(strings.TrimSpace(s)))
	if _, err := action.Status(); err != nil {
		return "", err
	}
	return action, nil
}
