package orders

import (
	"context"
	"strings"
)

type actionFunc func(context.Context, Event) error

type actionFactory struct {
	byAction map[string]actionFunc
}

func newActionFactory(onDispatch, onCanceled actionFunc) *actionFactory {
	return &actionFactory{
		byAction: map[string]actionFunc{
			"dispatch": onDispatch,
			// producers that emit order statuses instead of actions
			"created":  onDispatch,
			"pending":  onDispatch,
			"canceled": onCanceled,
			"cancel":   onCanceled,
			"deleted":  onCanceled,
		},
	}
}

func (f *actionFactory) get(action string) (actionFunc, bool) {
	action = strings.ToLower(strings.TrimSpace(action))
	fn, ok := f.byAction[action]
	return fn, ok
}
