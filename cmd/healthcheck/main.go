// Command healthcheck is the container liveness probe for the genforge
// daemon. It asks /api/v1/health whether the process is serving and exits
// 0 when it is. A degraded answer (credential not yet loaded, breaker open)
// still counts as alive: the daemon starts without a credential on purpose,
// and restarting it would not fix either condition.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"
)

const (
	loopbackAddr = "127.0.0.1:7433"
	probeTimeout = 2 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	url := "http://" + probeAddr(os.Getenv("GENFORGE_LISTEN_ADDR")) + "/api/v1/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1
	}

	resp, err := (&http.Client{Timeout: probeTimeout}).Do(req)
	if err != nil {
		return 1
	}
	_ = resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusServiceUnavailable:
		// 503 means degraded, not dead; the endpoint answered.
		return 0
	default:
		return 1
	}
}

// probeAddr derives the dial address from the daemon's listen address. The
// daemon usually binds 0.0.0.0 inside a container, which is not dialable,
// so the wildcard host (and an empty or unparsable setting) collapses to
// loopback on the default port.
func probeAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return loopbackAddr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
