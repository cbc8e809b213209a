// Copyright 2026 The kiji-rpc Authors
// This file is part of kiji-rpc.
//
// kiji-rpc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// kiji-rpc is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with kiji-rpc.  If not, see <http://www.gnu.org/licenses/>.

package rpc

import (
	"errors"
	"fmt"

	"github.com/indix/kiji-rpc/frame"
)

// Sentinel error kinds, per spec.md §7. Requestor surfaces all of these;
// Responder turns every failure it sees into a system-error reply.
// Transport failures never reach the Responder: the HTTP server reads the
// framed request itself and answers a short or malformed body with 400 Bad
// Request. This mirrors the teacher's ErrClientQuit/ErrNoResult sentinel
// pattern in _examples/pricillapb-contract/rpc/client.go.
var (
	// ErrConnectionClosed is a short read on the transport or frame stream.
	// It is the frame package's sentinel, so errors.Is matches it on short
	// reads surfaced by a Transceiver.
	ErrConnectionClosed = frame.ErrConnectionClosed

	// ErrProtocolViolation covers an unexpected handshake match value, a
	// malformed handshake, or an unknown message name at either peer.
	ErrProtocolViolation = errors.New("rpc: protocol violation")

	// ErrSchemaResolution is an Avro reader/writer mismatch the resolver
	// cannot bridge.
	ErrSchemaResolution = errors.New("rpc: schema resolution failed")
)

// RemoteError is returned by Requestor.Request when the peer answered
// with errorFlag = true. Datum is the decoded error payload.
type RemoteError struct {
	MessageName string
	Datum       interface{}
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc: remote error from %s: %v", e.MessageName, e.Datum)
}

// ApplicationError wraps a handler-raised error that was not a declared
// remote error; the responder converts it into a RemoteError carrying the
// textual description before it reaches the wire (spec.md §4.5 step 6).
type ApplicationError struct {
	MessageName string
	Err         error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("rpc: application error in %s: %v", e.MessageName, e.Err)
}

func (e *ApplicationError) Unwrap() error { return e.Err }

// UnknownMessageError is a protocol-violation where messageName is absent
// from either the local or the remote protocol's message map.
type UnknownMessageError struct {
	MessageName string
	Side        string // "local" or "remote"
}

func (e *UnknownMessageError) Error() string {
	return fmt.Sprintf("rpc: protocol violation: unknown %s message %q", e.Side, e.MessageName)
}

func (e *UnknownMessageError) Unwrap() error { return ErrProtocolViolation }
