// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"encoding/json"
	"errors"
)

var (
	ErrClosed            = errors.New("ipc: connection closed")
	ErrTimeout           = errors.New("ipc: request timeout")
	ErrRateLimited       = errors.New("ipc: rate limit exceeded")
	ErrEventsUnsupported = errors.New("ipc: transport does not support events")
	ErrInvalidFrame      = errors.New("ipc: invalid frame")
)

// UnknownCommandError is returned for a command that a channel does not
// handle.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return "Call not found: " + e.Command
}

// UnknownEventError is returned for an event that a channel does not
// expose.
type UnknownEventError struct {
	Event string
}

func (e *UnknownEventError) Error() string {
	return "Event not found: " + e.Event
}

// UnknownChannelError is returned when no channel is registered under the
// requested name.
type UnknownChannelError struct {
	Channel string
}

func (e *UnknownChannelError) Error() string {
	return "Channel not found: " + e.Channel
}

// RemoteError carries the message of a failure raised on the other side
// of a connection.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

const (
	codeUnknownCommand = "unknown_command"
	codeUnknownEvent   = "unknown_event"
	codeUnknownChannel = "unknown_channel"
	codeRateLimited    = "rate_limited"
)

// errorBody is the wire form of a failed call or listen. It is always
// JSON, whatever the payload codec.
type errorBody struct {
	Code    string `json:"code,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

func errorBodyFor(err error) errorBody {
	var (
		unknownCommand *UnknownCommandError
		unknownEvent   *UnknownEventError
		unknownChannel *UnknownChannelError
	)
	switch {
	case errors.As(err, &unknownCommand):
		return errorBody{Code: codeUnknownCommand, Name: unknownCommand.Command, Message: err.Error()}
	case errors.As(err, &unknownEvent):
		return errorBody{Code: codeUnknownEvent, Name: unknownEvent.Event, Message: err.Error()}
	case errors.As(err, &unknownChannel):
		return errorBody{Code: codeUnknownChannel, Name: unknownChannel.Channel, Message: err.Error()}
	case errors.Is(err, ErrRateLimited):
		return errorBody{Code: codeRateLimited, Message: err.Error()}
	default:
		return errorBody{Message: err.Error()}
	}
}

func encodeError(err error) []byte {
	data, marshalErr := json.Marshal(errorBodyFor(err))
	if marshalErr != nil {
		return []byte(err.Error())
	}
	return data
}

// decodeError maps an error body back to the typed error it was built
// from so errors.As works across the connection.
func decodeError(data []byte) error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return &RemoteError{Message: string(data)}
	}
	return body.err()
}

func (b errorBody) err() error {
	switch b.Code {
	case codeUnknownCommand:
		return &UnknownCommandError{Command: b.Name}
	case codeUnknownEvent:
		return &UnknownEventError{Event: b.Name}
	case codeUnknownChannel:
		return &UnknownChannelError{Channel: b.Name}
	case codeRateLimited:
		return ErrRateLimited
	default:
		return &RemoteError{Message: b.Message}
	}
}
