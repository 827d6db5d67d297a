package notification

import (
	"context"
	"errors"
)

// MultiDispatcher emits to every channel in order and joins their errors. A
// failing channel does not stop later ones.
type MultiDispatcher []Dispatcher

func (m MultiDispatcher) Emit(ctx context.Context, userID int64, event string, payload interface{}) error {
	var errs []error
	for _, d := range m {
		if err := d.Emit(ctx, userID, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
