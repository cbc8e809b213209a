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

// Command avroipc-client issues a single echoproto RPC against a server
// started by avroipc-server.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/indix/kiji-rpc/examples/echoproto"
	"github.com/indix/kiji-rpc/rpc"
	"github.com/indix/kiji-rpc/transporthttp"
)

func main() {
	app := &cli.App{
		Name:  "avroipc-client",
		Usage: "call the echoproto Avro RPC protocol over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080/"},
			&cli.StringFlag{Name: "message", Usage: "echo message", Value: "hello"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	transceiver, err := transporthttp.NewClient(c.String("url"))
	if err != nil {
		return err
	}
	defer transceiver.Close()

	protocol := echoproto.NewProtocol()
	requestor := rpc.NewRequestor(protocol, transceiver)

	response, err := requestor.Request("echo", echoproto.MessageDatum(c.String("message")))
	if err != nil {
		if remoteErr, ok := err.(*rpc.RemoteError); ok {
			return fmt.Errorf("remote error: %v", remoteErr.Datum)
		}
		return err
	}
	fmt.Println(echoproto.ExtractMessage(response))
	return nil
}
