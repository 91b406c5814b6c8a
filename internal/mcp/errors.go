package mcp

import "fmt"

// UnregisteredServerError is returned when a session is requested for a name
// that was never registered.
type UnregisteredServerError struct {
	Name string
}

func (e *UnregisteredServerError) Error() string {
	return fmt.Sprintf("server %q not registered", e.Name)
}

// ConnectionError wraps a transport or handshake failure against a registered
// server endpoint.
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
