// Package bus implements the command channel described in spec.md §3
// (component C): a client sends a fixed-layout command message (kill,
// suspend, resume, update, shutdown) to the daemon and blocks for a
// correlated response.
package bus

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Kind enumerates the commands a client can send, matching the original's
// msg_type_t (MSG_KILL/MSG_SUSPEND/MSG_RESUME/MSG_UPDATE/MSG_SHUTDOWN).
type Kind int32

const (
	KindKill Kind = iota + 1
	KindSuspend
	KindResume
	KindUpdate
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindKill:
		return "kill"
	case KindSuspend:
		return "suspend"
	case KindResume:
		return "resume"
	case KindUpdate:
		return "update"
	case KindShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// responseMaxLen matches the original's char response[256].
const responseMaxLen = 256

// requestMtype is the original's fixed "server message type" (msg.mtype =
// 1 in message_queue.c's send_command). Every client request arrives on
// this type; responses go out on the client's chosen CorrelationID instead,
// so multiple in-flight clients don't race for each other's replies.
const requestMtype = 1

// Request is a decoded command request.
type Request struct {
	Kind      Kind
	TargetPid int32
	Signal    int32
	// CorrelationID distinguishes this request's response from any other
	// concurrently in-flight request on the same queue. The original used
	// the caller's own mtype (always 1) and a single reply mtype derived
	// from the sender; here each client picks a fresh random mtype so
	// multiple clients never steal each other's replies.
	CorrelationID int64
}

// Response is a decoded command response.
type Response struct {
	Text string
}

// Queue is the transport a Client/Server run over. Implementations must
// support concurrent Send from multiple callers and Receive from one
// dispatcher loop.
type Queue interface {
	// SendRequest enqueues req as mtype 1, the server's well-known request
	// type.
	SendRequest(ctx context.Context, req Request) error
	// ReceiveRequest dequeues the next mtype-1 message, blocking (subject to
	// ctx) until one is available.
	ReceiveRequest(ctx context.Context) (Request, error)
	// SendResponse replies on corrID, the requester's chosen mtype.
	SendResponse(ctx context.Context, corrID int64, resp Response) error
	// ReceiveResponse blocks for the reply tagged with corrID.
	ReceiveResponse(ctx context.Context, corrID int64) (Response, error)
	Close() error
}

// NewCorrelationID derives a request-scoped mtype from a fresh UUID. SysV
// message types must be positive int64s, so the UUID's two 8-byte halves
// are XOR-folded together and the sign bit is cleared.
func NewCorrelationID() int64 {
	id := uuid.New()
	// fold the 16 bytes down to 63 bits, avoiding zero (0 would request
	// "any message" semantics on some msgrcv implementations), the sign
	// bit, and requestMtype (a client must never listen for its own
	// response on the server's well-known request type).
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(id[i]^id[i+8])
	}
	v &^= 1 << 63
	if v == 0 || v == requestMtype {
		v = requestMtype + 1
	}
	return int64(v)
}

// Client sends commands and waits for their responses.
type Client struct {
	q Queue
}

// NewClient wraps a Queue as a Client.
func NewClient(q Queue) *Client {
	return &Client{q: q}
}

// Do sends req (filling in a fresh CorrelationID) and waits for the
// matching response.
func (c *Client) Do(ctx context.Context, kind Kind, targetPid, signal int32) (Response, error) {
	req := Request{
		Kind:          kind,
		TargetPid:     targetPid,
		Signal:        signal,
		CorrelationID: NewCorrelationID(),
	}
	if err := c.q.SendRequest(ctx, req); err != nil {
		return Response{}, fmt.Errorf("bus: send request: %w", err)
	}
	resp, err := c.q.ReceiveResponse(ctx, req.CorrelationID)
	if err != nil {
		return Response{}, fmt.Errorf("bus: receive response: %w", err)
	}
	return resp, nil
}

// Handler processes one decoded request and returns the text to send back.
type Handler func(ctx context.Context, req Request) Response

// Server drains requests from a Queue and dispatches them to a Handler,
// matching the original's command_server polling loop (spec.md §3: dispatch
// loop, not one goroutine per request, since commands mutate the single
// shared table and are cheap to serialize).
type Server struct {
	q       Queue
	handler Handler
}

// NewServer wraps a Queue and Handler as a Server.
func NewServer(q Queue, handler Handler) *Server {
	return &Server{q: q, handler: handler}
}

// Run blocks, handling one request per ReceiveRequest call, until ctx is
// canceled.
func (s *Server) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		req, err := s.q.ReceiveRequest(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("bus: receive request: %w", err)
		}
		resp := s.handler(ctx, req)
		if err := s.q.SendResponse(ctx, req.CorrelationID, resp); err != nil {
			return fmt.Errorf("bus: send response: %w", err)
		}
	}
}
