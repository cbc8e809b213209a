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

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshakeRequestRoundTrip(t *testing.T) {
	text := "protocol-text"
	req := &HandshakeRequest{
		ClientHash:     [16]byte{1, 2, 3},
		ClientProtocol: &text,
		ServerHash:     [16]byte{4, 5, 6},
		Meta:           map[string][]byte{"trace": {9}},
	}
	var buf bytes.Buffer
	enc := NewBinaryEncoder(&buf)
	require.NoError(t, EncodeHandshakeRequest(req, enc))

	dec := NewBinaryDecoder(&buf)
	got, err := DecodeHandshakeRequest(dec)
	require.NoError(t, err)
	require.Equal(t, req.ClientHash, got.ClientHash)
	require.Equal(t, req.ServerHash, got.ServerHash)
	require.Equal(t, *req.ClientProtocol, *got.ClientProtocol)
	require.Equal(t, []byte{9}, got.Meta["trace"])
}

func TestHandshakeRequestRoundTripWithoutProtocol(t *testing.T) {
	req := &HandshakeRequest{ClientHash: [16]byte{1}, ServerHash: [16]byte{2}}
	var buf bytes.Buffer
	enc := NewBinaryEncoder(&buf)
	require.NoError(t, EncodeHandshakeRequest(req, enc))

	dec := NewBinaryDecoder(&buf)
	got, err := DecodeHandshakeRequest(dec)
	require.NoError(t, err)
	require.Nil(t, got.ClientProtocol)
}

func TestHandshakeResponseRoundTripEachMatch(t *testing.T) {
	for _, match := range []MatchKind{MatchBoth, MatchClient, MatchNone} {
		text := "server-protocol"
		hash := [16]byte{7, 7, 7}
		resp := &HandshakeResponse{Match: match}
		if match != MatchBoth {
			resp.ServerProtocol = &text
			resp.ServerHash = &hash
		}
		var buf bytes.Buffer
		enc := NewBinaryEncoder(&buf)
		require.NoError(t, EncodeHandshakeResponse(resp, enc))

		dec := NewBinaryDecoder(&buf)
		got, err := DecodeHandshakeResponse(dec)
		require.NoError(t, err)
		require.Equal(t, match, got.Match)
		if match == MatchBoth {
			require.Nil(t, got.ServerProtocol)
			require.Nil(t, got.ServerHash)
		} else {
			require.Equal(t, text, *got.ServerProtocol)
			require.Equal(t, hash, *got.ServerHash)
		}
	}
}

func TestMatchKindStringAndParse(t *testing.T) {
	for _, m := range []MatchKind{MatchBoth, MatchClient, MatchNone} {
		parsed, err := ParseMatchKind(m.String())
		require.NoError(t, err)
		require.Equal(t, m, parsed)
	}
	_, err := ParseMatchKind("BOGUS")
	require.Error(t, err)
}

func TestMetaRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewBinaryEncoder(&buf)
	require.NoError(t, EncodeMeta(map[string][]byte{"k": {1, 2, 3}}, enc))

	dec := NewBinaryDecoder(&buf)
	got, err := DecodeMeta(dec)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got["k"])
}

func TestMetaRoundTripNil(t *testing.T) {
	var buf bytes.Buffer
	enc := NewBinaryEncoder(&buf)
	require.NoError(t, EncodeMeta(nil, enc))

	dec := NewBinaryDecoder(&buf)
	got, err := DecodeMeta(dec)
	require.NoError(t, err)
	require.Empty(t, got)
}
