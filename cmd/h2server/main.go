// Package main runs a minimal HTTP/2 server on top of the hyperframe
// codec and its gnet transport.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FumingPower3925/hyperframe/internal/transport"
	"github.com/FumingPower3925/hyperframe/pkg/h2"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	logger := log.New(os.Stdout, "h2server ", log.LstdFlags)

	config := transport.DefaultConfig()
	if *configPath != "" {
		loaded, err := transport.LoadConfig(*configPath)
		if err != nil {
			logger.Fatalf("config: %v", err)
		}
		config = loaded
	}
	if *addr != "" {
		config.Addr = *addr
	}
	config.Logger = logger

	server, err := transport.NewServer(handle, config)
	if err != nil {
		logger.Fatalf("server: %v", err)
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Println("shutting down")
		server.Drain()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			logger.Printf("stop: %v", err)
		}
	}()

	if err := server.Start(); err != nil {
		logger.Fatalf("start: %v", err)
	}
}

// handle answers every request with a short text body echoing the path.
func handle(_ context.Context, req *h2.Message, _ []byte) (*h2.Message, []byte) {
	resp := h2.NewResponse(200)
	resp.Headers.Add("content-type", "text/plain; charset=utf-8")
	body := fmt.Sprintf("hello from %s %s\n", req.Method, req.URL)
	return resp, []byte(body)
}
