// Package discovery advertises a root blink node over mDNS so collector
// tooling on the same network segment can find it without a configured
// address, the same pattern samoyed's dns_sd.go uses for its KISS TNC
// service — built on github.com/brutella/dnssd.
package discovery

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brutella/dnssd"

	"github.com/mbor/blink/internal/logging"
)

const serviceType = "_blink-root._udp"

// Advertise registers a root node's service record and starts
// responding to mDNS queries for it in the background. The returned
// context.CancelFunc stops the responder.
func Advertise(ctx context.Context, port int, log *logging.Logger) (context.CancelFunc, error) {
	var cfg = dnssd.Config{
		Name: defaultServiceName(),
		Type: serviceType,
		Port: port,
	}

	var service, err = dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: building service record: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("discovery: starting responder: %w", err)
	}
	if _, err := responder.Add(service); err != nil {
		return nil, fmt.Errorf("discovery: registering service: %w", err)
	}

	var runCtx, cancel = context.WithCancel(ctx)
	go func() {
		if err := responder.Respond(runCtx); err != nil && runCtx.Err() == nil {
			log.Errorf("discovery: responder stopped: %v", err)
		}
	}()

	return cancel, nil
}

// defaultServiceName builds "blink root on <hostname>", trimming any
// domain suffix the way samoyed's dns_sd_default_service_name does.
func defaultServiceName() string {
	var hostname, err = os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown-host"
	}
	if i := strings.IndexByte(hostname, '.'); i >= 0 {
		hostname = hostname[:i]
	}
	return "blink root on " + hostname
}
