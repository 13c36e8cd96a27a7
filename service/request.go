package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/gmlewis/scenerender/scene"
)

// Command tells a worker what to draw. The implementations are
// RenderCommand and ShowcaseCommand.
type Command interface {
	isCommand()
}

// RenderCommand draws one rounded rectangle with its top-left corner at Position.
type RenderCommand struct {
	Position scene.Point
}

// ShowcaseCommand draws a fixed demo scene exercising every shape kind.
type ShowcaseCommand struct{}

func (RenderCommand) isCommand()   {}
func (ShowcaseCommand) isCommand() {}

// Request is one render job. Each request carries its own reply channel, so
// a response can only ever reach the caller that sent the request.
type Request struct {
	ID      uuid.UUID
	Command Command

	ctx   context.Context
	reply chan Response
}

// Response is the result of one Request. On success Data holds exactly
// width*height*4 bytes of non-premultiplied RGBA.
type Response struct {
	ID   uuid.UUID
	Data []byte
	Err  error
}

// NewRequest returns a request bound to the caller's context.
func NewRequest(ctx context.Context, cmd Command) *Request {
	return &Request{
		ID:      uuid.New(),
		Command: cmd,
		ctx:     ctx,
		reply:   make(chan Response, 1),
	}
}

// deliver hands resp to the caller without blocking and reports whether the
// caller was still waiting.
func (r *Request) deliver(resp Response) bool {
	select {
	case r.reply <- resp:
	default:
		return false
	}
	return r.ctx.Err() == nil
}

// abandon closes the reply channel of a request that will never be answered.
func (r *Request) abandon() {
	close(r.reply)
}
