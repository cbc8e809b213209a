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
	"bytes"
	"context"
	"fmt"

	"github.com/indix/kiji-rpc/avro"
	"github.com/indix/kiji-rpc/log"
)

// Handler processes one procedure call for a single message. It is the
// dispatch hook spec.md §4.5 calls `invoke`. Returning a *RemoteError
// signals a declared remote error (its Datum is encoded against the
// message's errors schema); any other non-nil error is converted to a
// RemoteError carrying its textual description (spec.md §4.5 step 6,
// "application-error").
type Handler func(ctx context.Context, request interface{}) (interface{}, error)

type requestMetaKey struct{}

// RequestMetadata extracts the call request's metadata map from ctx, as
// passed to a Handler. Present as a supplemented feature; see
// SPEC_FULL.md.
func RequestMetadata(ctx context.Context) map[string][]byte {
	m, _ := ctx.Value(requestMetaKey{}).(map[string][]byte)
	return m
}

// Responder is the server-side state machine (spec.md §4.5). Its protocol
// cache is safe for concurrent use from multiple goroutines (spec.md §5,
// §4.6); its handler table is written only by Handle.
type Responder struct {
	localProtocol *avro.Protocol
	localHash     [16]byte
	cache         *protocolCache
	handlers      map[string]Handler
}

// NewResponder builds a Responder for localProtocol. The cache is
// populated with (localHash -> localProtocol), per spec.md §3.
func NewResponder(localProtocol *avro.Protocol) *Responder {
	r := &Responder{
		localProtocol: localProtocol,
		localHash:     localProtocol.Fingerprint(),
		cache:         newProtocolCache(),
		handlers:      make(map[string]Handler),
	}
	r.cache.set(r.localHash, localProtocol)
	return r
}

// Handle registers the handler invoked for messageName in a plain
// name -> handler lookup table, replacing reflection-based dispatch by
// name. The table is not guarded by a lock, so Handle is not safe to call
// while Respond runs on other goroutines.
func (r *Responder) Handle(messageName string, h Handler) {
	r.handlers[messageName] = h
}

// Respond is the entry point to process one procedure call (spec.md
// §4.5). It never returns a non-nil error to its caller: every failure
// short of a panic is converted into a system-error response buffer.
func (r *Responder) Respond(ctx context.Context, callRequest []byte) []byte {
	buf, _ := r.respond(ctx, callRequest)
	return buf
}

func (r *Responder) respond(ctx context.Context, callRequest []byte) (out []byte, callAttempted bool) {
	dec := avro.NewBinaryDecoder(bytes.NewReader(callRequest))
	var respBuf bytes.Buffer
	enc := avro.NewBinaryEncoder(&respBuf)

	remoteProtocol, err := r.processHandshake(dec, enc)
	if err != nil {
		// Nothing usable was written (or what was written doesn't form a
		// complete HandshakeResponse): the whole reply is the system error.
		return r.systemErrorResponse(err), false
	}
	if remoteProtocol == nil {
		// match == NONE: handshake response only, no call attempted.
		return respBuf.Bytes(), false
	}

	handshakeLen := respBuf.Len()
	if err := r.serveCall(ctx, remoteProtocol, dec, enc); err != nil {
		// Anything that escapes serveCall may leave a half-written call
		// response trailing the already-complete HandshakeResponse bytes.
		// Discard only the call-response portion and append a fresh
		// system-error call response after it, per spec.md §4.5 step 7
		// (this replaces the source's FIXME about the error flag possibly
		// being written before the failure handler runs) and spec.md §6's
		// wire contract that every reply is
		// [HandshakeResponse][call response iff match != NONE].
		log.Error("rpc: discarding partial call response after escaped error", "err", err)
		respBuf.Truncate(handshakeLen)
		writeSystemError(enc, err)
		return respBuf.Bytes(), true
	}
	return respBuf.Bytes(), true
}

// processHandshake reads the HandshakeRequest, resolves the match, and
// writes the HandshakeResponse. It returns the resolved remote protocol,
// or nil if match == NONE (no remote protocol could be resolved).
func (r *Responder) processHandshake(dec *avro.BinaryDecoder, enc *avro.BinaryEncoder) (*avro.Protocol, error) {
	req, err := avro.DecodeHandshakeRequest(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}

	remoteProtocol, cached := r.cache.get(req.ClientHash)
	if !cached && req.ClientProtocol != nil {
		parsed, err := avro.ParseProtocolText(*req.ClientProtocol)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		remoteProtocol = parsed
		r.cache.set(req.ClientHash, parsed)
		log.Debug("rpc: cached new peer protocol", "fingerprint", fmt.Sprintf("%x", req.ClientHash))
	}

	var match avro.MatchKind
	switch {
	case remoteProtocol == nil:
		match = avro.MatchNone
	case req.ServerHash == r.localHash:
		match = avro.MatchBoth
	default:
		match = avro.MatchClient
	}

	resp := &avro.HandshakeResponse{Match: match}
	if match != avro.MatchBoth {
		text := r.localProtocol.Text()
		resp.ServerProtocol = &text
		h := r.localHash
		resp.ServerHash = &h
	}
	if err := avro.EncodeHandshakeResponse(resp, enc); err != nil {
		return nil, err
	}
	if match == avro.MatchNone {
		return nil, nil
	}
	return remoteProtocol, nil
}

func (r *Responder) serveCall(ctx context.Context, remoteProtocol *avro.Protocol, dec *avro.BinaryDecoder, enc *avro.BinaryEncoder) error {
	meta, err := avro.DecodeMeta(dec)
	if err != nil {
		return err
	}
	messageName, err := dec.ReadString()
	if err != nil {
		return err
	}

	remoteMessage, ok := remoteProtocol.MessageByName(messageName)
	if !ok {
		return &UnknownMessageError{MessageName: messageName, Side: "remote"}
	}
	localMessage, ok := r.localProtocol.MessageByName(messageName)
	if !ok {
		return &UnknownMessageError{MessageName: messageName, Side: "local"}
	}

	request, err := avro.Read(remoteMessage.Request, localMessage.Request, dec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaResolution, err)
	}

	response, remoteErr := r.invoke(ctx, messageName, localMessage, request, meta)

	if err := avro.EncodeMeta(nil, enc); err != nil {
		return err
	}
	if remoteErr == nil {
		if err := enc.WriteBoolean(false); err != nil {
			return err
		}
		return avro.Write(localMessage.Response, response, enc)
	}
	if err := enc.WriteBoolean(true); err != nil {
		return err
	}
	return avro.Write(localMessage.Errors, remoteErr.Datum, enc)
}

// invoke dispatches to the registered handler, normalizing its result per
// spec.md §4.5 step 6.
func (r *Responder) invoke(ctx context.Context, messageName string, localMessage *avro.Message, request interface{}, meta map[string][]byte) (interface{}, *RemoteError) {
	handler, ok := r.handlers[messageName]
	if !ok {
		return nil, &RemoteError{MessageName: messageName, Datum: fmt.Sprintf("no handler registered for %q", messageName)}
	}
	ctx = context.WithValue(ctx, requestMetaKey{}, meta)

	response, err := handler(ctx, request)
	if err == nil {
		return response, nil
	}
	if remoteErr, ok := err.(*RemoteError); ok {
		return nil, remoteErr
	}
	log.Error("rpc: handler error", "message", messageName, "err", err)
	return nil, &RemoteError{MessageName: messageName, Datum: err.Error()}
}

// systemErrorResponse builds a fresh response buffer carrying cause's
// text against avro.SystemErrorSchema, used when processHandshake itself
// fails and no HandshakeResponse bytes exist yet to preserve.
func (r *Responder) systemErrorResponse(cause error) []byte {
	var buf bytes.Buffer
	enc := avro.NewBinaryEncoder(&buf)
	writeSystemError(enc, cause)
	return buf.Bytes()
}

// writeSystemError writes the call-response portion of a system-error
// reply — [metadata, errorFlag=true, cause's text against
// avro.SystemErrorSchema] — onto enc, used when any error escapes request
// decoding, dispatch, or response encoding (spec.md §4.5 step 7, §3
// "System error schema").
func writeSystemError(enc *avro.BinaryEncoder, cause error) {
	if err := avro.EncodeMeta(nil, enc); err != nil {
		log.Error("rpc: failed to encode system error response metadata", "err", err)
		return
	}
	if err := enc.WriteBoolean(true); err != nil {
		log.Error("rpc: failed to encode system error response flag", "err", err)
		return
	}
	if err := avro.Write(avro.SystemErrorSchema, cause.Error(), enc); err != nil {
		log.Error("rpc: failed to encode system error response payload", "err", err)
	}
}
