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

package transporthttp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/indix/kiji-rpc/examples/echoproto"
	"github.com/indix/kiji-rpc/frame"
	"github.com/indix/kiji-rpc/rpc"
	"github.com/indix/kiji-rpc/transporthttp"
)

func mustReadFramed(r *http.Request) []byte {
	payload, err := frame.NewReader(r.Body).ReadMessage()
	if err != nil {
		panic(err)
	}
	return payload
}

func writeFramed(w http.ResponseWriter, payload []byte) {
	if err := frame.NewWriter(w).WriteMessage(payload); err != nil {
		panic(err)
	}
}

func newEchoHTTPServer(t *testing.T) *httptest.Server {
	t.Helper()
	protocol := echoproto.NewProtocol()
	responder := rpc.NewResponder(protocol)
	responder.Handle("echo", func(ctx context.Context, request interface{}) (interface{}, error) {
		return echoproto.MessageDatum(echoproto.ExtractMessage(request)), nil
	})
	responder.Handle("divide", func(ctx context.Context, request interface{}) (interface{}, error) {
		fields := request.(map[string]interface{})
		num := fields["numerator"].(int64)
		den := fields["denominator"].(int64)
		if den == 0 {
			return nil, &rpc.RemoteError{MessageName: "divide", Datum: echoproto.MessageDatum("division by zero")}
		}
		return num / den, nil
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Exercise the same path transporthttp.Server registers, without
		// depending on a fixed listen address: httptest.NewServer binds an
		// ephemeral port, so the Server type's ListenAndServe/Shutdown
		// lifecycle is tested separately in TestServerListenAndServeShutdown.
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		callResponse := responder.Respond(r.Context(), mustReadFramed(r))
		w.Header().Set("Content-Type", transporthttp.AvroBinaryContentType)
		w.WriteHeader(http.StatusOK)
		writeFramed(w, callResponse)
	})
	return httptest.NewServer(mux)
}

func TestClientEchoOverHTTP(t *testing.T) {
	server := newEchoHTTPServer(t)
	defer server.Close()

	protocol := echoproto.NewProtocol()
	client, err := transporthttp.NewClient(server.URL)
	require.NoError(t, err)
	defer client.Close()

	requestor := rpc.NewRequestor(protocol, client)
	resp, err := requestor.Request("echo", echoproto.MessageDatum("over-the-wire"))
	require.NoError(t, err)
	require.Equal(t, "over-the-wire", echoproto.ExtractMessage(resp))
}

func TestClientDeclaredRemoteErrorOverHTTP(t *testing.T) {
	server := newEchoHTTPServer(t)
	defer server.Close()

	protocol := echoproto.NewProtocol()
	client, err := transporthttp.NewClient(server.URL)
	require.NoError(t, err)
	defer client.Close()

	requestor := rpc.NewRequestor(protocol, client)
	_, err = requestor.Request("divide", echoproto.DivideRequest(1, 0))
	require.Error(t, err)
	var remoteErr *rpc.RemoteError
	require.ErrorAs(t, err, &remoteErr)
}

func TestServerListenAndServeShutdown(t *testing.T) {
	protocol := echoproto.NewProtocol()
	responder := rpc.NewResponder(protocol)
	responder.Handle("echo", func(ctx context.Context, request interface{}) (interface{}, error) {
		return request, nil
	})

	server := transporthttp.NewServer(responder, transporthttp.ServerConfig{Addr: "127.0.0.1:0"})
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	require.NoError(t, server.Shutdown(context.Background()))
	require.NoError(t, <-errCh)
}
