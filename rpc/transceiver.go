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

// Transceiver is the pluggable bidirectional byte channel a Requestor
// speaks through (spec.md §4.2). HTTP is the reference binding
// (transporthttp.Client); implementations are not required to pool
// connections but must not interleave calls on a shared connection.
type Transceiver interface {
	// RemoteName identifies the peer, suitable for cache keying.
	RemoteName() string

	// ReadMessage blocks until one complete framed message has been
	// assembled and returns its payload.
	ReadMessage() ([]byte, error)

	// WriteMessage blocks until one complete framed message has been
	// emitted and flushed.
	WriteMessage(payload []byte) error

	// Close releases the channel handle.
	Close() error
}

// Transceive performs one synchronous request/reply exchange:
// WriteMessage(request) followed by ReadMessage().
func Transceive(t Transceiver, request []byte) ([]byte, error) {
	if err := t.WriteMessage(request); err != nil {
		return nil, err
	}
	return t.ReadMessage()
}
