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
	lru "github.com/hashicorp/golang-lru"

	"github.com/indix/kiji-rpc/avro"
)

// protocolCacheSize bounds the number of distinct peer protocols a
// Responder remembers. One entry is one parsed *avro.Protocol; this is
// deliberately generous since protocol churn on a given deployment is
// expected to be tiny (peers rarely change their protocol's fingerprint).
const protocolCacheSize = 4096

// protocolCache is the responder's fingerprint-keyed protocol cache
// (spec.md §3, §4.5). It is the "explicit concurrent map" the REDESIGN
// FLAGS in spec.md §9 ask for, backed by hashicorp/golang-lru (already a
// dependency of the teacher's go.mod) instead of a hand-rolled
// synchronized map — lru.Cache is safe for concurrent readers and
// writers, and duplicate inserts for the same key are idempotent since
// they simply overwrite the existing entry with an identical value.
type protocolCache struct {
	cache *lru.Cache
}

func newProtocolCache() *protocolCache {
	c, err := lru.New(protocolCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// protocolCacheSize never is.
		panic(err)
	}
	return &protocolCache{cache: c}
}

func (c *protocolCache) get(hash [16]byte) (*avro.Protocol, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	return v.(*avro.Protocol), true
}

func (c *protocolCache) set(hash [16]byte, p *avro.Protocol) {
	c.cache.Add(hash, p)
}
