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

// Package frame implements the length-prefixed frame codec described in
// spec.md §4.1: a framed message is a sequence of (uint32 size, payload)
// pairs terminated by a zero-length frame, all integers 32-bit
// big-endian. It is grounded on
// _examples/original_source/python/avro/src/main/python/avro/ipc.py's
// FramedReader/FramedWriter, re-expressed as io.Reader/io.Writer helpers
// in the teacher's idiom (small, allocation-conscious wrappers, see
// _examples/pricillapb-contract/rpc/http.go for the sibling style of
// thin io.Reader/io.Writer adapters in this codebase).
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrConnectionClosed is returned when an EOF occurs inside a frame: a
// short read of either the size header or a payload.
var ErrConnectionClosed = errors.New("frame: connection closed")

// DefaultBufferSize is the reference chunk size used by Writer. Per the
// REDESIGN FLAGS in spec.md §9, this is an upper bound on a single
// non-terminal frame's size (the source's max(BUFFER_SIZE, len(message))
// made BUFFER_SIZE a lower bound, which this module treats as the bug it
// is and fixes with min).
const DefaultBufferSize = 8192

// MaxMessageSize bounds the total size of bytes a Reader will reassemble
// from a single framed message, guarding against a peer that never sends
// a terminating zero-length frame. It is not part of spec.md's invariants
// (which place no upper bound on reader reassembly) but is cheap
// hardening carried as ambient defensive code, not a feature.
const MaxMessageSize = 64 << 20 // 64 MiB

// Reader reassembles a single framed message from r.
type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

// ReadMessage reads frames until a zero-length frame terminates the
// message, returning the concatenated payload.
func (fr *Reader) ReadMessage() ([]byte, error) {
	var message []byte
	for {
		size, err := readUint32(fr.r)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return message, nil
		}
		if len(message)+int(size) > MaxMessageSize {
			return nil, fmt.Errorf("frame: message exceeds %d bytes", MaxMessageSize)
		}
		start := len(message)
		message = append(message, make([]byte, size)...)
		if _, err := io.ReadFull(fr.r, message[start:]); err != nil {
			return nil, wrapShortRead(err)
		}
	}
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, wrapShortRead(err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func wrapShortRead(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrConnectionClosed
	}
	return err
}

// Writer chunks messages into non-empty frames followed by a terminating
// zero-length frame.
type Writer struct {
	w          io.Writer
	bufferSize int
}

func NewWriter(w io.Writer) *Writer { return NewWriterSize(w, DefaultBufferSize) }

func NewWriterSize(w io.Writer, bufferSize int) *Writer {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Writer{w: w, bufferSize: bufferSize}
}

// WriteMessage emits message as one or more frames bounded by bufferSize,
// followed by the zero-length terminator. Any conformant chunking that
// sums to len(message) is acceptable per spec.md §4.1; the reassembly on
// read is by concatenation regardless of how the sender chunked it.
func (fw *Writer) WriteMessage(message []byte) error {
	for len(message) > 0 {
		chunkSize := fw.bufferSize
		if chunkSize > len(message) {
			chunkSize = len(message)
		}
		if err := fw.writeFrame(message[:chunkSize]); err != nil {
			return err
		}
		message = message[chunkSize:]
	}
	return fw.writeUint32(0)
}

func (fw *Writer) writeFrame(chunk []byte) error {
	if err := fw.writeUint32(uint32(len(chunk))); err != nil {
		return err
	}
	_, err := fw.w.Write(chunk)
	return err
}

func (fw *Writer) writeUint32(n uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], n)
	_, err := fw.w.Write(buf[:])
	return err
}
