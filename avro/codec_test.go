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

func roundTrip(t *testing.T, schema Schema, datum interface{}) interface{} {
	t.Helper()
	var buf bytes.Buffer
	enc := NewBinaryEncoder(&buf)
	require.NoError(t, Write(schema, datum, enc))
	dec := NewBinaryDecoder(&buf)
	got, err := Read(schema, schema, dec)
	require.NoError(t, err)
	return got
}

func TestLongZigZagRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 64, -65, 1 << 20, -(1 << 20)} {
		got := roundTrip(t, Long, n)
		require.Equal(t, n, got)
	}
}

func TestStringAndBytesRoundTrip(t *testing.T) {
	require.Equal(t, "hello world", roundTrip(t, String, "hello world"))
	require.Equal(t, []byte{1, 2, 3}, roundTrip(t, Bytes, []byte{1, 2, 3}))
}

func TestFixedRoundTrip(t *testing.T) {
	schema := FixedSchema{Name: "MD5", Size: 16}
	var h [16]byte
	for i := range h {
		h[i] = byte(i)
	}
	got := roundTrip(t, schema, h[:])
	require.Equal(t, h[:], got)
}

func TestEnumRoundTrip(t *testing.T) {
	schema := EnumSchema{Name: "HandshakeMatch", Symbols: []string{"BOTH", "CLIENT", "NONE"}}
	got := roundTrip(t, schema, "CLIENT")
	require.Equal(t, "CLIENT", got)
}

func TestUnionNullableRoundTrip(t *testing.T) {
	schema := NullableUnion(String)
	require.Nil(t, roundTrip(t, schema, nil))
	require.Equal(t, "x", roundTrip(t, schema, "x"))
}

func TestMapRoundTrip(t *testing.T) {
	schema := MetaSchema // map<bytes>
	in := map[string][]byte{"a": {1, 2}, "b": {}}
	got := roundTrip(t, schema, in).(map[string]interface{})
	require.Equal(t, []byte{1, 2}, got["a"])
	require.Equal(t, []byte{}, got["b"])
}

func TestEmptyMapRoundTrip(t *testing.T) {
	got := roundTrip(t, MetaSchema, map[string][]byte{}).(map[string]interface{})
	require.Empty(t, got)
}

func TestRecordRoundTrip(t *testing.T) {
	schema := RecordSchema{
		Name: "Pair",
		Fields: []Field{
			{Name: "numerator", Type: Long},
			{Name: "denominator", Type: Long},
		},
	}
	datum := map[string]interface{}{"numerator": int64(6), "denominator": int64(3)}
	got := roundTrip(t, schema, datum).(map[string]interface{})
	require.Equal(t, int64(6), got["numerator"])
	require.Equal(t, int64(3), got["denominator"])
}

// TestSchemaResolutionWidensRecord verifies that a reader schema with an
// extra field tolerates a writer record lacking it (spec.md "schema
// resolution" invariant).
func TestSchemaResolutionWidensRecord(t *testing.T) {
	writer := RecordSchema{
		Name:   "V1",
		Fields: []Field{{Name: "message", Type: String}},
	}
	reader := RecordSchema{
		Name: "V2",
		Fields: []Field{
			{Name: "message", Type: String},
			{Name: "extra", Type: Long},
		},
	}
	var buf bytes.Buffer
	enc := NewBinaryEncoder(&buf)
	require.NoError(t, Write(writer, map[string]interface{}{"message": "hi"}, enc))

	dec := NewBinaryDecoder(&buf)
	got, err := Read(writer, reader, dec)
	require.NoError(t, err)
	fields := got.(map[string]interface{})
	require.Equal(t, "hi", fields["message"])
	require.Nil(t, fields["extra"])
}
