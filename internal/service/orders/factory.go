package orders

import (
	"context"

	"github.com/google/uuid"
)

type actionFunc func(context.Context, uuid.UUID, Event) error

type actionFactory struct {
	byStatus map[string]actionFunc
}

func newActionFactory(onReady, onCanceled actionFunc) *actionFactory {
	return &actionFactory{
		byStatus: map[string]actionFunc{
			StatusCreated:  onReady,
			StatusReady:    onReady,
			StatusCanceled: onCanceled,
			StatusDeleted:  onCanceled,
		},
	}
}

func (f *actionFactory) get(status string) (actionFunc, bool) {
	fn, ok := f.byStatus[status]
	return fn, ok
}
