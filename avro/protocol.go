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
	"crypto/md5"
	"encoding/json"
	"fmt"
)

// Message is a named RPC entry point: a request record schema, a response
// schema (any shape), and an errors union schema whose first branch is
// string (spec.md §3).
type Message struct {
	Name     string
	Request  Schema
	Response Schema
	Errors   Schema
}

// Protocol is an immutable named collection of messages, with a stable
// canonical text form and a 16-byte MD5 fingerprint over that text
// (spec.md §3, §6).
type Protocol struct {
	Name        string
	Messages    map[string]*Message
	text        string
	fingerprint [16]byte
}

// NewProtocol builds a Protocol from its messages and computes its
// canonical text and fingerprint. Two protocols with identical Name and
// Messages produce byte-identical text and therefore equal fingerprints.
func NewProtocol(name string, messages map[string]*Message) *Protocol {
	p := &Protocol{Name: name, Messages: messages}
	p.text = canonicalText(p)
	p.fingerprint = md5.Sum([]byte(p.text))
	return p
}

// Fingerprint returns the protocol's 16-byte MD5 content fingerprint.
func (p *Protocol) Fingerprint() [16]byte { return p.fingerprint }

// Text returns the canonical textual form whose MD5 is the fingerprint.
func (p *Protocol) Text() string { return p.text }

func (p *Protocol) MessageByName(name string) (*Message, bool) {
	m, ok := p.Messages[name]
	return m, ok
}

// --- canonical text / parse ------------------------------------------------
//
// spec.md treats the Avro protocol parser and canonical-text producer as an
// external collaborator. No Go Avro library exists in the example corpus
// (see DESIGN.md), so this module's canonical form is a small deterministic
// JSON encoding of the schema tree: Go's encoding/json always emits map
// keys in sorted order and these structs have fixed field order, so two
// Protocol values built from equal {Name, Messages} inputs always marshal
// to byte-identical text, which is the only property the fingerprint
// invariant in spec.md §8 ("fingerprint idempotence") requires.

type schemaJSON struct {
	Kind     string        `json:"kind"`
	Name     string        `json:"name,omitempty"`
	Size     int           `json:"size,omitempty"`
	Symbols  []string      `json:"symbols,omitempty"`
	Values   *schemaJSON   `json:"values,omitempty"`
	Branches []*schemaJSON `json:"branches,omitempty"`
	Fields   []fieldJSON   `json:"fields,omitempty"`
}

type fieldJSON struct {
	Name string      `json:"name"`
	Type *schemaJSON `json:"type"`
}

type messageJSON struct {
	Request  *schemaJSON `json:"request"`
	Response *schemaJSON `json:"response"`
	Errors   *schemaJSON `json:"errors"`
}

type protocolJSON struct {
	Name     string                  `json:"protocol"`
	Messages map[string]*messageJSON `json:"messages"`
}

func schemaToJSON(s Schema) *schemaJSON {
	if s == nil {
		return nil
	}
	switch v := s.(type) {
	case primitive:
		return &schemaJSON{Kind: v.kind.String()}
	case FixedSchema:
		return &schemaJSON{Kind: "fixed", Name: v.Name, Size: v.Size}
	case EnumSchema:
		return &schemaJSON{Kind: "enum", Name: v.Name, Symbols: v.Symbols}
	case MapSchema:
		return &schemaJSON{Kind: "map", Values: schemaToJSON(v.Values)}
	case UnionSchema:
		branches := make([]*schemaJSON, len(v.Branches))
		for i, b := range v.Branches {
			branches[i] = schemaToJSON(b)
		}
		return &schemaJSON{Kind: "union", Branches: branches}
	case RecordSchema:
		fields := make([]fieldJSON, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = fieldJSON{Name: f.Name, Type: schemaToJSON(f.Type)}
		}
		return &schemaJSON{Kind: "record", Name: v.Name, Fields: fields}
	default:
		return &schemaJSON{Kind: "unknown"}
	}
}

func jsonToSchema(j *schemaJSON) (Schema, error) {
	if j == nil {
		return nil, nil
	}
	switch j.Kind {
	case "null":
		return Null, nil
	case "boolean":
		return Boolean, nil
	case "long":
		return Long, nil
	case "bytes":
		return Bytes, nil
	case "string":
		return String, nil
	case "fixed":
		return FixedSchema{Name: j.Name, Size: j.Size}, nil
	case "enum":
		return EnumSchema{Name: j.Name, Symbols: j.Symbols}, nil
	case "map":
		values, err := jsonToSchema(j.Values)
		if err != nil {
			return nil, err
		}
		return MapSchema{Values: values}, nil
	case "union":
		branches := make([]Schema, len(j.Branches))
		for i, b := range j.Branches {
			bs, err := jsonToSchema(b)
			if err != nil {
				return nil, err
			}
			branches[i] = bs
		}
		return UnionSchema{Branches: branches}, nil
	case "record":
		fields := make([]Field, len(j.Fields))
		for i, f := range j.Fields {
			ft, err := jsonToSchema(f.Type)
			if err != nil {
				return nil, err
			}
			fields[i] = Field{Name: f.Name, Type: ft}
		}
		return RecordSchema{Name: j.Name, Fields: fields}, nil
	default:
		return nil, fmt.Errorf("avro: unknown schema kind %q", j.Kind)
	}
}

func canonicalText(p *Protocol) string {
	pj := protocolJSON{Name: p.Name, Messages: make(map[string]*messageJSON, len(p.Messages))}
	for name, m := range p.Messages {
		pj.Messages[name] = &messageJSON{
			Request:  schemaToJSON(m.Request),
			Response: schemaToJSON(m.Response),
			Errors:   schemaToJSON(m.Errors),
		}
	}
	b, err := json.Marshal(pj)
	if err != nil {
		// schemaJSON trees built from this package's own types always
		// marshal; a failure here means a programming error upstream.
		panic(fmt.Sprintf("avro: protocol %s failed to serialize: %v", p.Name, err))
	}
	return string(b)
}

// ParseProtocolText parses a protocol's canonical text back into a
// *Protocol, as produced by NewProtocol and returned by Protocol.Text. This is the
// requestor/responder's substitute for the external Avro protocol parser.
func ParseProtocolText(text string) (*Protocol, error) {
	var pj protocolJSON
	if err := json.Unmarshal([]byte(text), &pj); err != nil {
		return nil, fmt.Errorf("avro: parse protocol: %w", err)
	}
	messages := make(map[string]*Message, len(pj.Messages))
	for name, mj := range pj.Messages {
		req, err := jsonToSchema(mj.Request)
		if err != nil {
			return nil, err
		}
		resp, err := jsonToSchema(mj.Response)
		if err != nil {
			return nil, err
		}
		errs, err := jsonToSchema(mj.Errors)
		if err != nil {
			return nil, err
		}
		messages[name] = &Message{Name: name, Request: req, Response: resp, Errors: errs}
	}
	p := &Protocol{Name: pj.Name, Messages: messages}
	p.text = canonicalText(p)
	p.fingerprint = md5.Sum([]byte(p.text))
	return p, nil
}
