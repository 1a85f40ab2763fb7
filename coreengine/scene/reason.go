package scene

import (
	"context"

	"github.com/blendmate/bridge/coreengine/commands"
	"github.com/blendmate/bridge/coreengine/envelope"
)

// ReasonMiddleware tags notifications raised while a command runs with the
// "command" reason, so the counterpart can tell its own edits from the user's.
type ReasonMiddleware struct {
	scene *Scene
}

// NewReasonMiddleware creates a ReasonMiddleware for s.
func NewReasonMiddleware(s *Scene) *ReasonMiddleware {
	return &ReasonMiddleware{scene: s}
}

type reasonKey struct{}

// Before switches the update reason.
func (m *ReasonMiddleware) Before(ctx context.Context, _ *commands.Request) (context.Context, error) {
	prev := m.scene.SetUpdateReason(envelope.ReasonCommand)
	return context.WithValue(ctx, reasonKey{}, prev), nil
}

// After restores the previous reason.
func (m *ReasonMiddleware) After(ctx context.Context, _ *commands.Request, _ *commands.Result) {
	if prev, ok := ctx.Value(reasonKey{}).(string); ok {
		m.scene.SetUpdateReason(prev)
	}
}

var _ commands.Middleware = (*ReasonMiddleware)(nil)
