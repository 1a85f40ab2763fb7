package commands

import (
	"fmt"
	"runtime/debug"

	"github.com/blendmate/bridge/coreengine/observability"
)

// SafeExecute runs fn with panic recovery. A panic is logged with its stack
// and returned as an error.
func SafeExecute(logger observability.Logger, operation string, fn func() error) error {
	_, err := SafeExecuteWithResult(logger, operation, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// SafeExecuteWithResult runs fn with panic recovery and returns its result.
func SafeExecuteWithResult[T any](logger observability.Logger, operation string, fn func() (T, error)) (T, error) {
	var result T
	var err error

	func() {
		defer func() {
			if r := recover(); r != nil {
				if logger != nil {
					logger.Error("panic_recovered",
						"operation", operation,
						"panic", r,
						"stack", string(debug.Stack()),
					)
				}
				err = fmt.Errorf("panic in %s: %v", operation, r)
			}
		}()
		result, err = fn()
	}()

	return result, err
}
