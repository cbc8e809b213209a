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
	"fmt"
	"io"
)

// BinaryDecoder reads Avro binary primitives from an underlying reader.
type BinaryDecoder struct {
	r io.Reader
}

func NewBinaryDecoder(r io.Reader) *BinaryDecoder { return &BinaryDecoder{r: r} }

func (d *BinaryDecoder) ReadBoolean() (bool, error) {
	var buf [1]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}

func (d *BinaryDecoder) ReadLong() (int64, error) {
	var result uint64
	var shift uint
	var buf [1]byte
	for {
		if _, err := io.ReadFull(d.r, buf[:]); err != nil {
			return 0, err
		}
		b := buf[0]
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	n := int64(result>>1) ^ -int64(result&1)
	return n, nil
}

func (d *BinaryDecoder) ReadBytes() ([]byte, error) {
	n, err := d.ReadLong()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("avro: negative byte-string length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *BinaryDecoder) ReadString() (string, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *BinaryDecoder) ReadFixed(size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read decodes a value written against writerSchema, resolving it to
// readerSchema. Pass the same schema for both arguments when no resolution
// is needed.
func Read(writerSchema, readerSchema Schema, d *BinaryDecoder) (interface{}, error) {
	if readerSchema == nil {
		readerSchema = writerSchema
	}
	switch s := writerSchema.(type) {
	case primitive:
		return readPrimitive(s, d)
	case FixedSchema:
		return d.ReadFixed(s.Size)
	case EnumSchema:
		idx, err := d.ReadLong()
		if err != nil {
			return nil, err
		}
		if int(idx) < 0 || int(idx) >= len(s.Symbols) {
			return nil, fmt.Errorf("avro: enum %s: index %d out of range", s.Name, idx)
		}
		return s.Symbols[idx], nil
	case MapSchema:
		return readMap(s, readerSchema, d)
	case UnionSchema:
		return readUnion(s, readerSchema, d)
	case RecordSchema:
		return readRecord(s, readerSchema, d)
	default:
		return nil, fmt.Errorf("avro: unsupported schema %T", writerSchema)
	}
}

func readPrimitive(s primitive, d *BinaryDecoder) (interface{}, error) {
	switch s.kind {
	case KindNull:
		return nil, nil
	case KindBoolean:
		return d.ReadBoolean()
	case KindLong:
		return d.ReadLong()
	case KindBytes:
		return d.ReadBytes()
	case KindString:
		return d.ReadString()
	default:
		return nil, fmt.Errorf("avro: unsupported primitive kind %v", s.kind)
	}
}

func readMap(s MapSchema, readerSchema Schema, d *BinaryDecoder) (interface{}, error) {
	readerValues := s.Values
	if rm, ok := readerSchema.(MapSchema); ok {
		readerValues = rm.Values
	}
	result := make(map[string]interface{})
	for {
		blockCount, err := d.ReadLong()
		if err != nil {
			return nil, err
		}
		if blockCount == 0 {
			break
		}
		if blockCount < 0 {
			// negative block count is followed by its byte size; skip is
			// not needed here since this codec never emits negative counts,
			// but a conformant peer may. Read the size and ignore it.
			if _, err := d.ReadLong(); err != nil {
				return nil, err
			}
			blockCount = -blockCount
		}
		for i := int64(0); i < blockCount; i++ {
			key, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			val, err := Read(s.Values, readerValues, d)
			if err != nil {
				return nil, err
			}
			result[key] = val
		}
	}
	return result, nil
}

func readUnion(s UnionSchema, readerSchema Schema, d *BinaryDecoder) (interface{}, error) {
	idx, err := d.ReadLong()
	if err != nil {
		return nil, err
	}
	if int(idx) < 0 || int(idx) >= len(s.Branches) {
		return nil, fmt.Errorf("avro: union branch index %d out of range", idx)
	}
	writerBranch := s.Branches[idx]
	readerBranch := writerBranch
	if ru, ok := readerSchema.(UnionSchema); ok {
		found := false
		for _, b := range ru.Branches {
			if b.Kind() == writerBranch.Kind() {
				readerBranch = b
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("avro: schema-resolution: no reader union branch of kind %s", writerBranch.Kind())
		}
	}
	return Read(writerBranch, readerBranch, d)
}

func readRecord(s RecordSchema, readerSchema Schema, d *BinaryDecoder) (interface{}, error) {
	readerRecord, ok := readerSchema.(RecordSchema)
	if !ok {
		readerRecord = s
	}
	result := make(map[string]interface{}, len(s.Fields))
	for _, f := range s.Fields {
		readerType := f.Type
		if rf, ok := readerRecord.FieldByName(f.Name); ok {
			readerType = rf.Type
		}
		v, err := Read(f.Type, readerType, d)
		if err != nil {
			return nil, fmt.Errorf("avro: field %s.%s: %w", s.Name, f.Name, err)
		}
		result[f.Name] = v
	}
	return result, nil
}
