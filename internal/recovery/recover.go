// Package recovery converts panics in user-supplied code into errors.
// The build orchestrator runs caller-provided transformation runners;
// a panicking runner must not take down the whole engine process.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Guard wraps a function call with panic recovery. If fn panics, the
// panic is logged with its stack trace and returned as an error.
//
// Example:
//
//	err := recovery.Guard(logger, "transform run", func() error {
//	    return runner.Run(ctx, params)
//	})
func Guard(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			logger.Error("panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(stack),
			)
			err = fmt.Errorf("%s panicked: %v", operation, r)
		}
	}()
	return fn()
}
