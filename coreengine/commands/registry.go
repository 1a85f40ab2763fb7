// Package commands dispatches counterpart requests to named handlers.
//
// Features:
//   - Closed registry: one Handler per action, duplicates rejected
//   - Middleware chain for logging, metrics and tracing
//   - Panic recovery at the dispatch boundary
//   - Built-in property, object, operator and capability handlers
//
// Usage:
//
//	reg := commands.NewRegistry(logger)
//	reg.Use(commands.NewLoggingMiddleware(logger))
//	commands.RegisterBuiltins(reg, host, commands.DefaultOperatorPolicy(), logger)
//
//	res := reg.Handle(ctx, &commands.Request{Action: "property.get", Target: "objects['Cube']"})
package commands

import (
	"context"
	"sort"
	"sync"

	"github.com/blendmate/bridge/coreengine/envelope"
	"github.com/blendmate/bridge/coreengine/observability"
)

// Handler executes one action.
type Handler interface {
	Handle(ctx context.Context, req *Request) *Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) *Result

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) *Result {
	return f(ctx, req)
}

// Registry maps action names to handlers.
type Registry struct {
	handlers   map[string]Handler
	middleware []Middleware
	logger     observability.Logger
	mu         sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger observability.Logger) *Registry {
	return &Registry{
		handlers:   make(map[string]Handler),
		middleware: make([]Middleware, 0),
		logger:     observability.OrNop(logger),
	}
}

// =============================================================================
// REGISTRATION
// =============================================================================

// Register binds a handler to an action. Only one handler per action is allowed.
func (r *Registry) Register(action string, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[action]; exists {
		return NewHandlerAlreadyRegisteredError(action)
	}
	r.handlers[action] = handler
	r.logger.Debug("command_registered", "action", action)
	return nil
}

// Use appends middleware. Before hooks run in registration order, After
// hooks in reverse.
func (r *Registry) Use(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw)
}

// =============================================================================
// INTROSPECTION
// =============================================================================

// Has reports whether action has a handler.
func (r *Registry) Has(action string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[action]
	return ok
}

// Actions returns the registered actions, sorted.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for a := range r.handlers {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// DISPATCH
// =============================================================================

// Handle dispatches req. It always returns a Result: unknown actions,
// middleware rejections and panics in handlers or middleware all become
// failed results.
func (r *Registry) Handle(ctx context.Context, req *Request) *Result {
	r.mu.RLock()
	handler, ok := r.handlers[req.Action]
	chain := make([]Middleware, len(r.middleware))
	copy(chain, r.middleware)
	r.mu.RUnlock()

	var res *Result
	for _, mw := range chain {
		next, rejected := r.before(ctx, mw, req)
		if rejected != nil {
			res = rejected
			break
		}
		if next != nil {
			ctx = next
		}
	}

	if res == nil {
		if !ok {
			res = Fail(envelope.CodeNotFound, "Unknown action: %s", req.Action)
		} else {
			res = r.invoke(ctx, handler, req)
		}
	}

	for i := len(chain) - 1; i >= 0; i-- {
		res = r.after(ctx, chain[i], req, res)
	}
	return res
}

// before runs one Before hook. A rejection or panic ends the chain with a
// failed result.
func (r *Registry) before(ctx context.Context, mw Middleware, req *Request) (context.Context, *Result) {
	var rejectErr error
	next, err := SafeExecuteWithResult(r.logger, "middleware:"+req.Action, func() (context.Context, error) {
		next, err := mw.Before(ctx, req)
		rejectErr = err
		return next, nil
	})
	if err != nil {
		return nil, Fail(envelope.CodeInternalError, "%s", err.Error())
	}
	if rejectErr != nil {
		return nil, FromError(rejectErr)
	}
	return next, nil
}

// after runs one After hook. A panic replaces the result with INTERNAL_ERROR
// and the remaining hooks still run.
func (r *Registry) after(ctx context.Context, mw Middleware, req *Request, res *Result) *Result {
	err := SafeExecute(r.logger, "middleware:"+req.Action, func() error {
		mw.After(ctx, req, res)
		return nil
	})
	if err != nil {
		return Fail(envelope.CodeInternalError, "%s", err.Error())
	}
	return res
}

func (r *Registry) invoke(ctx context.Context, handler Handler, req *Request) *Result {
	res, err := SafeExecuteWithResult(r.logger, "command:"+req.Action, func() (*Result, error) {
		return handler.Handle(ctx, req), nil
	})
	if err != nil {
		return Fail(envelope.CodeInternalError, "%s", err.Error())
	}
	if res == nil {
		return Fail(envelope.CodeInternalError, "handler for %s returned no result", req.Action)
	}
	switch {
	case res.Success:
		res.Code = envelope.CodeOK
	case !res.Code.IsValid() || res.Code == envelope.CodeOK:
		res.Code = envelope.CodeInternalError
	}
	return res
}
