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

// Command avroipc-server runs a demonstration Avro RPC responder over
// HTTP, serving the echoproto protocol (github.com/indix/kiji-rpc/examples/echoproto).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/indix/kiji-rpc/examples/echoproto"
	"github.com/indix/kiji-rpc/log"
	"github.com/indix/kiji-rpc/rpc"
	"github.com/indix/kiji-rpc/transporthttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "avroipc-server",
		Usage: "serve the echoproto Avro RPC protocol over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "localhost:8080"},
			&cli.StringFlag{Name: "path", Value: "/"},
			&cli.StringFlag{Name: "cors", Value: "", Usage: "comma-separated allowed CORS origins"},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if err := configureLogLevel(c.String("log-level")); err != nil {
		return err
	}

	protocol := echoproto.NewProtocol()
	responder := rpc.NewResponder(protocol)
	responder.Handle("echo", handleEcho)
	responder.Handle("divide", handleDivide)

	server := transporthttp.NewServer(responder, transporthttp.ServerConfig{
		Addr:        c.String("addr"),
		Path:        c.String("path"),
		CORSOrigins: c.String("cors"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("avroipc-server: stopped")
	return nil
}

func handleEcho(ctx context.Context, request interface{}) (interface{}, error) {
	message := echoproto.ExtractMessage(request)
	return echoproto.MessageDatum(message), nil
}

func handleDivide(ctx context.Context, request interface{}) (interface{}, error) {
	fields := request.(map[string]interface{})
	numerator := fields["numerator"].(int64)
	denominator := fields["denominator"].(int64)
	if denominator == 0 {
		return nil, &rpc.RemoteError{MessageName: "divide", Datum: echoproto.MessageDatum("division by zero")}
	}
	return numerator / denominator, nil
}

func configureLogLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	log.SetDefault(log.NewLogger(slog.New(log.NewTerminalHandler(os.Stderr, lvl))))
	return nil
}
