//go:build linux

package bus

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// wireMsg is the Go mirror of the original's process_msg_t: a leading
// platform "long" mtype field (8 bytes on linux/amd64 and linux/arm64)
// followed by the fixed-layout command payload.
type wireMsg struct {
	Mtype     int64
	Kind      int32
	TargetPid int32
	Signal    int32
	_         int32 // padding
	ReplyTo   int64 // mtype the server should reply on; unused in response messages
	Response  [responseMaxLen]byte
}

const wireMsgBodyLen = int(unsafe.Sizeof(wireMsg{})) - 8 // excludes Mtype, per msgsnd/msgrcv's msgsz contract

// sysvQueue backs Queue with a real SysV message queue. golang.org/x/sys/unix
// does not expose typed Msgget/Msgsnd/Msgrcv/Msgctl wrappers, so this uses
// the raw syscalls directly, the same approach internal/shm's semctl_linux.go
// takes for semctl.
type sysvQueue struct {
	id int
}

// NewQueue attaches to (creating if necessary) the message queue at key.
func NewQueue(key int) (Queue, error) {
	id, _, errno := unix.Syscall(unix.SYS_MSGGET, uintptr(key), uintptr(unix.IPC_CREAT|0o666), 0)
	if errno != 0 {
		return nil, fmt.Errorf("bus: msgget: %w", errno)
	}
	return &sysvQueue{id: int(id)}, nil
}

func (q *sysvQueue) send(ctx context.Context, msg *wireMsg) error {
	for {
		_, _, errno := unix.Syscall6(unix.SYS_MSGSND, uintptr(q.id), uintptr(unsafe.Pointer(msg)), uintptr(wireMsgBodyLen), 0, 0, 0)
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		return fmt.Errorf("bus: msgsnd: %w", errno)
	}
}

// recv dequeues the first message of type mtype, polling with IPC_NOWAIT
// (matching the original's receive_command) since blocking msgrcv can't be
// canceled by ctx.
func (q *sysvQueue) recv(ctx context.Context, mtype int64) (wireMsg, error) {
	var msg wireMsg
	for {
		if err := ctx.Err(); err != nil {
			return wireMsg{}, err
		}
		_, _, errno := unix.Syscall6(unix.SYS_MSGRCV, uintptr(q.id), uintptr(unsafe.Pointer(&msg)), uintptr(wireMsgBodyLen), uintptr(mtype), uintptr(unix.IPC_NOWAIT), 0)
		if errno == 0 {
			return msg, nil
		}
		if errno == unix.ENOMSG {
			select {
			case <-time.After(50 * time.Millisecond):
				continue
			case <-ctx.Done():
				return wireMsg{}, ctx.Err()
			}
		}
		if errno == unix.EINTR {
			continue
		}
		return wireMsg{}, fmt.Errorf("bus: msgrcv: %w", errno)
	}
}

func (q *sysvQueue) SendRequest(ctx context.Context, req Request) error {
	msg := wireMsg{
		Mtype:     requestMtype,
		Kind:      int32(req.Kind),
		TargetPid: req.TargetPid,
		Signal:    req.Signal,
		ReplyTo:   req.CorrelationID,
	}
	return q.send(ctx, &msg)
}

func (q *sysvQueue) ReceiveRequest(ctx context.Context) (Request, error) {
	msg, err := q.recv(ctx, requestMtype)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Kind:          Kind(msg.Kind),
		TargetPid:     msg.TargetPid,
		Signal:        msg.Signal,
		CorrelationID: msg.ReplyTo,
	}, nil
}

func (q *sysvQueue) SendResponse(ctx context.Context, corrID int64, resp Response) error {
	var msg wireMsg
	msg.Mtype = corrID
	n := copy(msg.Response[:responseMaxLen-1], resp.Text)
	msg.Response[n] = 0
	return q.send(ctx, &msg)
}

func (q *sysvQueue) ReceiveResponse(ctx context.Context, corrID int64) (Response, error) {
	msg, err := q.recv(ctx, corrID)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: nullTerminated(msg.Response[:])}, nil
}

func (q *sysvQueue) Close() error {
	_, _, errno := unix.Syscall(unix.SYS_MSGCTL, uintptr(q.id), uintptr(unix.IPC_RMID), 0)
	if errno != 0 {
		return fmt.Errorf("bus: msgctl IPC_RMID: %w", errno)
	}
	return nil
}

func nullTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
