package qmp

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed is returned when a session cannot be established:
	// dial failure, handshake timeout, or a rejected capabilities negotiation.
	ErrConnectionFailed = errors.New("qmp: connection failed")

	// ErrProtocol is returned when the peer sends something that is not
	// valid QMP: a malformed greeting, unparsable JSON, or a response with
	// neither a return nor an error member. It carries connection-failure
	// severity; the session is not usable afterwards.
	ErrProtocol = errors.New("qmp: protocol error")

	// ErrClosed is returned when executing on a closed client.
	ErrClosed = errors.New("qmp: client closed")
)

// CommandError is a command rejected by the VM monitor. It is the
// protocol-level error object, not a transport failure: the monitor is
// reachable and answered, it just refused the command.
type CommandError struct {
	Class string `json:"class"`
	Desc  string `json:"desc"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("qmp: command failed: %s: %s", e.Class, e.Desc)
}
