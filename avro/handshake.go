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

package avro

import "fmt"

// MatchKind is the handshake's negotiation outcome (spec.md §3, §4.4, §4.5).
type MatchKind int

const (
	MatchBoth MatchKind = iota
	MatchClient
	MatchNone
)

var matchSymbols = []string{"BOTH", "CLIENT", "NONE"}

func (m MatchKind) String() string {
	if int(m) < 0 || int(m) >= len(matchSymbols) {
		return "UNKNOWN"
	}
	return matchSymbols[m]
}

func ParseMatchKind(s string) (MatchKind, error) {
	for i, sym := range matchSymbols {
		if sym == s {
			return MatchKind(i), nil
		}
	}
	return 0, fmt.Errorf("avro: protocol-violation: unexpected handshake match %q", s)
}

var fingerprintSchema Schema = FixedSchema{Name: "MD5", Size: 16}

var matchEnum = EnumSchema{Name: "HandshakeMatch", Symbols: matchSymbols}

// HandshakeRequestSchema is the Avro record schema for HandshakeRequest,
// per spec.md §3:
//
//	{clientHash: fixed[16], clientProtocol: string|null, serverHash: fixed[16], meta: map<bytes>|null}
var HandshakeRequestSchema = RecordSchema{
	Name: "HandshakeRequest",
	Fields: []Field{
		{Name: "clientHash", Type: fingerprintSchema},
		{Name: "clientProtocol", Type: NullableUnion(String)},
		{Name: "serverHash", Type: fingerprintSchema},
		{Name: "meta", Type: NullableUnion(MetaSchema)},
	},
}

// HandshakeResponseSchema is the Avro record schema for HandshakeResponse,
// per spec.md §3:
//
//	{match: enum{BOTH,CLIENT,NONE}, serverProtocol: string|null, serverHash: fixed[16]|null, meta: map<bytes>|null}
var HandshakeResponseSchema = RecordSchema{
	Name: "HandshakeResponse",
	Fields: []Field{
		{Name: "match", Type: matchEnum},
		{Name: "serverProtocol", Type: NullableUnion(String)},
		{Name: "serverHash", Type: NullableUnion(fingerprintSchema)},
		{Name: "meta", Type: NullableUnion(MetaSchema)},
	},
}

// HandshakeRequest is the Go-level mirror of a decoded HandshakeRequest
// record.
type HandshakeRequest struct {
	ClientHash     [16]byte
	ClientProtocol *string
	ServerHash     [16]byte
	Meta           map[string][]byte
}

// HandshakeResponse is the Go-level mirror of a decoded HandshakeResponse
// record.
type HandshakeResponse struct {
	Match          MatchKind
	ServerProtocol *string
	ServerHash     *[16]byte
	Meta           map[string][]byte
}

// EncodeHandshakeRequest writes req against HandshakeRequestSchema.
func EncodeHandshakeRequest(req *HandshakeRequest, e *BinaryEncoder) error {
	datum := map[string]interface{}{
		"clientHash": req.ClientHash[:],
		"serverHash": req.ServerHash[:],
	}
	if req.ClientProtocol != nil {
		datum["clientProtocol"] = *req.ClientProtocol
	}
	if req.Meta != nil {
		datum["meta"] = req.Meta
	}
	return Write(HandshakeRequestSchema, datum, e)
}

// DecodeHandshakeRequest reads a HandshakeRequest.
func DecodeHandshakeRequest(d *BinaryDecoder) (*HandshakeRequest, error) {
	v, err := Read(HandshakeRequestSchema, HandshakeRequestSchema, d)
	if err != nil {
		return nil, err
	}
	fields := v.(map[string]interface{})
	req := &HandshakeRequest{}
	copy(req.ClientHash[:], fields["clientHash"].([]byte))
	copy(req.ServerHash[:], fields["serverHash"].([]byte))
	if cp, ok := fields["clientProtocol"].(string); ok {
		req.ClientProtocol = &cp
	}
	if meta, ok := fields["meta"].(map[string]interface{}); ok {
		req.Meta = toByteMap(meta)
	}
	return req, nil
}

// EncodeHandshakeResponse writes resp against HandshakeResponseSchema.
func EncodeHandshakeResponse(resp *HandshakeResponse, e *BinaryEncoder) error {
	datum := map[string]interface{}{
		"match": resp.Match.String(),
	}
	if resp.ServerProtocol != nil {
		datum["serverProtocol"] = *resp.ServerProtocol
	}
	if resp.ServerHash != nil {
		h := *resp.ServerHash
		datum["serverHash"] = h[:]
	}
	if resp.Meta != nil {
		datum["meta"] = resp.Meta
	}
	return Write(HandshakeResponseSchema, datum, e)
}

// DecodeHandshakeResponse reads a HandshakeResponse.
func DecodeHandshakeResponse(d *BinaryDecoder) (*HandshakeResponse, error) {
	v, err := Read(HandshakeResponseSchema, HandshakeResponseSchema, d)
	if err != nil {
		return nil, err
	}
	fields := v.(map[string]interface{})
	match, err := ParseMatchKind(fields["match"].(string))
	if err != nil {
		return nil, err
	}
	resp := &HandshakeResponse{Match: match}
	if sp, ok := fields["serverProtocol"].(string); ok {
		resp.ServerProtocol = &sp
	}
	if sh, ok := fields["serverHash"].([]byte); ok {
		var h [16]byte
		copy(h[:], sh)
		resp.ServerHash = &h
	}
	if meta, ok := fields["meta"].(map[string]interface{}); ok {
		resp.Meta = toByteMap(meta)
	}
	return resp, nil
}

func toByteMap(m map[string]interface{}) map[string][]byte {
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			out[k] = b
		}
	}
	return out
}

// EncodeMeta writes a map<bytes> metadata value.
func EncodeMeta(meta map[string][]byte, e *BinaryEncoder) error {
	if meta == nil {
		meta = map[string][]byte{}
	}
	return Write(MetaSchema, meta, e)
}

// DecodeMeta reads a map<bytes> metadata value.
func DecodeMeta(d *BinaryDecoder) (map[string][]byte, error) {
	v, err := Read(MetaSchema, MetaSchema, d)
	if err != nil {
		return nil, err
	}
	return toByteMap(v.(map[string]interface{})), nil
}
