package service

import (
	"context"
	"net"
	"time"
)

// Prober answers whether a network path to the price provider exists.
type Prober interface {
	Online(ctx context.Context) bool
}

// DialProber probes by opening a TCP connection to a well-known address.
type DialProber struct {
	Address string
	Timeout time.Duration
}

// Online dials the probe address and reports success.
func (p DialProber) Online(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

var _ Prober = DialProber{}
