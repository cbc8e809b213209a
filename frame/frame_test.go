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

package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := bytes.Repeat([]byte{0xAB}, 3*DefaultBufferSize+17)

	require.NoError(t, NewWriter(&buf).WriteMessage(payload))
	got, err := NewReader(&buf).ReadMessage()
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestWriteMessageEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteMessage(nil))
	got, err := NewReader(&buf).ReadMessage()
	require.NoError(t, err)
	require.Empty(t, got)
}

// TestWriterChunksWithMinNotMax asserts the REDESIGN FLAG fix: a message
// larger than bufferSize is split into chunks no larger than bufferSize,
// never into a single oversized frame.
func TestWriterChunksWithMinNotMax(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterSize(&buf, 16)
	payload := bytes.Repeat([]byte{1}, 40)
	require.NoError(t, w.WriteMessage(payload))

	var sizes []uint32
	b := buf.Bytes()
	for {
		size := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		sizes = append(sizes, size)
		if size == 0 {
			break
		}
		b = b[size:]
	}
	require.Equal(t, []uint32{16, 16, 8, 0}, sizes)
}

func TestReadMessageTerminatesOnZeroFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterSize(&buf, 4)
	require.NoError(t, w.WriteMessage([]byte("hello world")))
	// A well-formed stream always ends in exactly one zero-length frame;
	// appending another message after it must not be consumed by the first
	// ReadMessage call.
	require.NoError(t, w.WriteMessage([]byte("second")))

	r := NewReader(&buf)
	first, err := r.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), first)

	second, err := r.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, []byte("second"), second)
}

func TestReadMessageShortReadIsConnectionClosed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteMessage([]byte("abc")))
	truncated := buf.Bytes()[:buf.Len()-1]

	_, err := NewReader(bytes.NewReader(truncated)).ReadMessage()
	require.True(t, errors.Is(err, ErrConnectionClosed))
}

func TestReadMessageOversizedMessageRejected(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterSize(&buf, MaxMessageSize/2)
	payload := make([]byte, MaxMessageSize+1)
	require.NoError(t, w.WriteMessage(payload))

	_, err := NewReader(&buf).ReadMessage()
	require.Error(t, err)
}
