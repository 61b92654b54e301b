package presence

import "errors"

var (
	// ErrInvalidArgument is returned when a join carries an empty or
	// oversized username or room.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnjoinedSender is returned when a chat message arrives from a
	// connection that holds no session. The message is dropped.
	ErrUnjoinedSender = errors.New("sender has not joined a room")
	// ErrUnknownConnection marks a delivery to a connection the transport
	// no longer knows about. It is never escalated.
	ErrUnknownConnection = errors.New("unknown connection")
)
