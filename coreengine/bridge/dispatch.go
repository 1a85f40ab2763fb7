package bridge

import (
	"context"
	"time"

	"github.com/blendmate/bridge/coreengine/commands"
	"github.com/blendmate/bridge/coreengine/envelope"
	"github.com/blendmate/bridge/coreengine/observability"
	"github.com/blendmate/bridge/coreengine/scheduler"
	"github.com/blendmate/bridge/coreengine/session"
)

// =============================================================================
// HOST TIMERS (host context only)
// =============================================================================

// processQueues sends queued outbound messages and dispatches inbound
// frames. Handlers only ever run here.
func (b *Bridge) processQueues() time.Duration {
	if !b.flag.IsSet() {
		return scheduler.Stop
	}

	if b.transport.Connected() {
		b.sendOutbound()
	}

	for {
		frame, ok := b.inbound.Pop()
		if !ok {
			break
		}
		if err := commands.SafeExecute(b.logger, "handle_frame", func() error {
			b.handleFrame(frame)
			return nil
		}); err != nil {
			observability.RecordMessage("inbound", "error")
		}
	}

	observability.SetQueueDepth("outbound", b.outbound.Len())
	observability.SetQueueDepth("inbound", b.inbound.Len())
	return b.cfg.TickInterval()
}

// sendOutbound pops and sends every queued message. A failure drops that
// message only. Returns the number sent.
func (b *Bridge) sendOutbound() int {
	sent := 0
	for b.transport.Connected() {
		msg, ok := b.outbound.Pop()
		if !ok {
			break
		}
		err := commands.SafeExecute(b.logger, "send_outbound", func() error {
			data, err := b.encode(msg)
			if err != nil {
				observability.RecordMessage("outbound", "error")
				return err
			}
			return b.transport.Send(data)
		})
		if err != nil {
			b.logger.Warn("outbound_send_failed", "error", err.Error())
			continue
		}
		sent++
	}
	return sent
}

func (b *Bridge) flushThrottle() time.Duration {
	events, next, more := b.throttle.Tick()
	for _, ev := range events {
		b.enqueue(envelope.Event(ev.Kind, ev.Payload))
	}
	if !more {
		return scheduler.Stop
	}
	return next
}

func (b *Bridge) heartbeat() time.Duration {
	if !b.flag.IsSet() {
		return scheduler.Stop
	}
	if b.transport.Connected() {
		b.enqueue(envelope.Heartbeat(b.status.ActiveObjectName(), b.status.Mode(), b.status.Filepath()))
	}
	return b.cfg.HeartbeatInterval()
}

// =============================================================================
// INBOUND ROUTING
// =============================================================================

// handleFrame decodes one frame and enqueues its replies. Malformed frames
// are dropped without a reply since no request id can be trusted.
func (b *Bridge) handleFrame(frame []byte) {
	req, ok := b.decodeRequest(frame)
	if !ok {
		return
	}

	if req.Action == "" {
		if req.ID == "" {
			b.logger.Debug("inbound_ignored", "reason", "no action")
			return
		}
		b.enqueue(envelope.Failure(req.ID, "", envelope.CodeInvalidParams, "Missing 'action' field"))
		return
	}

	if req.Action == session.UpgradeAction {
		b.upgrade(req)
		return
	}

	ctx := b.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	res := b.registry.Handle(ctx, req)
	b.enqueue(res.Response(req.ID, req.Action))
}

func (b *Bridge) decodeRequest(frame []byte) (*commands.Request, bool) {
	env, legacy, err := envelope.Decode(frame)
	if err != nil {
		observability.RecordMessage("inbound", "error")
		b.logger.Warn("inbound_decode_failed", "error", err.Error(), "bytes", len(frame))
		return nil, false
	}

	if env != nil {
		if original, wrapped := envelope.UnwrapLegacy(env); wrapped {
			return commands.RequestFromMap(map[string]any(original)), true
		}
		req := commands.RequestFromMap(env.Body)
		if req.ID == "" {
			req.ID = env.ID
		}
		return req, true
	}
	return commands.RequestFromMap(map[string]any(legacy)), true
}
