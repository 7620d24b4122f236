// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package guard runs fallible operations under an explicit failure policy:
// either the failure is logged and reduced to a boolean, or it is returned to
// the caller.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/opentrusty/lifecycle/internal/observability/logger"
)

// Mode selects how a failed operation is reported.
type Mode int

const (
	// Suppress logs the failure and reports false with a nil error.
	Suppress Mode = iota
	// Propagate reports false together with the underlying error.
	Propagate
)

// ModeFor maps a debug switch to a Mode.
func ModeFor(debug bool) Mode {
	if debug {
		return Propagate
	}
	return Suppress
}

func (m Mode) String() string {
	switch m {
	case Suppress:
		return "suppress"
	case Propagate:
		return "propagate"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// PanicError carries a value recovered from a panicking operation.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Guard applies a Mode to operations.
type Guard struct {
	mode Mode
}

// New creates a guard with the given mode
func New(mode Mode) Guard {
	return Guard{mode: mode}
}

// Mode returns the configured failure mode.
func (g Guard) Mode() Mode {
	return g.mode
}

// Run executes fn and reports whether it succeeded. A panic inside fn is
// recovered and treated as a failure.
func (g Guard) Run(ctx context.Context, op string, fn func(context.Context) error) (bool, error) {
	if err := Call(ctx, fn); err != nil {
		return g.Fail(ctx, op, err)
	}
	return true, nil
}

// Fail reports an already observed failure of op according to the mode.
func (g Guard) Fail(ctx context.Context, op string, err error) (bool, error) {
	if g.mode == Propagate {
		return false, err
	}
	slog.WarnContext(ctx, "operation failed",
		logger.Operation(op),
		logger.Error(err),
		slog.String("failure_mode", g.mode.String()),
	)
	return false, nil
}

// Call runs fn and converts a panic into a *PanicError.
func Call(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}
