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

// Package transporthttp is the HTTP reference binding for the Transceiver
// contract (spec.md §4.2, §4.6). It is grounded on
// _examples/pricillapb-contract/rpc/http.go (httpClient, sendHTTP,
// newJSONHTTPHandler, NewHTTPServer) and the original Python
// HTTPTransceiver / AvroIpcHttpServer in
// _examples/original_source/python/avro/src/main/python/avro/ipc.py,
// adapted to frame-encode the Avro RPC envelope instead of bare JSON.
package transporthttp

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/indix/kiji-rpc/frame"
)

// AvroBinaryContentType is the MIME type used on both request and
// response bodies (spec.md §6).
const AvroBinaryContentType = "avro/binary"

// Client is a Transceiver that carries exactly one RPC per HTTP exchange,
// matching spec.md §4.2 ("One HTTP request/response pair carries exactly
// one RPC"). Connection reuse is left to the underlying http.Client
// (http.DefaultClient keeps idle connections alive); a Client never has
// more than one exchange in flight.
type Client struct {
	httpClient *http.Client
	endpoint   string
	pending    *pendingExchange
}

// NewClient creates a Client posting to endpoint with http.DefaultClient.
// Use NewClientWithHTTPClient to supply a custom *http.Client (timeouts,
// TLS config, proxies — all delegated, per spec.md §1 non-goals).
func NewClient(endpoint string) (*Client, error) {
	return NewClientWithHTTPClient(endpoint, http.DefaultClient)
}

func NewClientWithHTTPClient(endpoint string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("transporthttp: invalid endpoint: %w", err)
	}
	return &Client{httpClient: hc, endpoint: u.String()}, nil
}

func (c *Client) RemoteName() string { return c.endpoint }

// WriteMessage and ReadMessage are not independently meaningful over
// HTTP's request/response pairing; Transceive is the only supported
// sequencing, matching the teacher's httpClient which panics on a bare
// Send and blocks on Recv (_examples/pricillapb-contract/rpc/http.go).
// Client therefore implements rpc.Transceiver by buffering the pending
// request and performing the round trip on the first ReadMessage call.

type pendingExchange struct {
	request []byte
}

func (c *Client) WriteMessage(payload []byte) error {
	c.pending = &pendingExchange{request: payload}
	return nil
}

func (c *Client) ReadMessage() ([]byte, error) {
	if c.pending == nil {
		return nil, fmt.Errorf("transporthttp: ReadMessage called before WriteMessage")
	}
	req := c.pending
	c.pending = nil
	return c.roundTrip(req.request)
}

func (c *Client) roundTrip(framedRequest []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := frame.NewWriter(&body).WriteMessage(framedRequest); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", AvroBinaryContentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("transporthttp: unexpected status %d: %s", resp.StatusCode, string(b))
	}

	return frame.NewReader(resp.Body).ReadMessage()
}

func (c *Client) Close() error { return nil }
