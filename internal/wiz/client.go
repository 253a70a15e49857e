package wiz

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/linuxmatters/wizsync/internal/config"
	"github.com/linuxmatters/wizsync/internal/processor"
)

const (
	// DefaultWriteTimeout bounds each datagram write so a send can never
	// stall the capture goroutine.
	DefaultWriteTimeout = 20 * time.Millisecond

	// DefaultResolveTimeout bounds one resolution pass over the endpoints.
	DefaultResolveTimeout = 2 * time.Second
)

// ErrUnresolved reports an endpoint with no IPv4 address in the client's
// endpoint table.
var ErrUnresolved = errors.New("endpoint has no resolved IPv4 address")

// TransportError is a failed send to one endpoint.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// LookupFunc resolves a host name. net.DefaultResolver.LookupIP satisfies it.
type LookupFunc func(ctx context.Context, network, host string) ([]net.IP, error)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLookup replaces the system resolver.
func WithLookup(lookup LookupFunc) ClientOption {
	return func(c *Client) { c.lookup = lookup }
}

// endpoints maps configured hosts to their IPv4 addresses.
type endpoints struct {
	generation uint64
	addrs      map[string]net.IP
	failed     []string
}

// Client sends setPilot datagrams from a single pre-opened socket. It
// implements processor.Sink.
//
// Host names are resolved by Resolve, never by Send: Send only reads the
// endpoint table, so a slow or broken resolver cannot reach the capture
// goroutine.
type Client struct {
	cfg     *config.Config
	conn    *net.UDPConn
	timeout time.Duration
	lookup  LookupFunc
	table   atomic.Pointer[endpoints]
}

var _ processor.Sink = (*Client)(nil)

// NewClient opens the sending socket and resolves the configured endpoints
// once. Hosts that fail to resolve are reported by Unresolved and fail each
// send until a later Resolve succeeds.
func NewClient(cfg *config.Config, opts ...ClientOption) (*Client, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("open udp socket: %w", err)
	}
	c := &Client{
		cfg:     cfg,
		conn:    conn,
		timeout: DefaultWriteTimeout,
		lookup:  net.DefaultResolver.LookupIP,
	}
	for _, opt := range opts {
		opt(c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultResolveTimeout)
	defer cancel()
	_ = c.Resolve(ctx)
	return c, nil
}

// Resolve rebuilds the endpoint table from the current light_ips. It is
// called off the frame path, at start-up and after each config reload. The
// returned error joins one *TransportError per host that did not resolve.
func (c *Client) Resolve(ctx context.Context) error {
	t := &endpoints{
		generation: c.cfg.Generation(),
		addrs:      make(map[string]net.IP),
	}

	var errs []error
	for _, host := range c.cfg.LightIPs() {
		if _, ok := t.addrs[host]; ok {
			continue
		}
		ip, err := c.resolveHost(ctx, host)
		if err != nil {
			t.failed = append(t.failed, host)
			errs = append(errs, &TransportError{Endpoint: host, Err: fmt.Errorf("resolve: %w", err)})
			continue
		}
		t.addrs[host] = ip
	}
	c.table.Store(t)
	return errors.Join(errs...)
}

func (c *Client) resolveHost(ctx context.Context, host string) (net.IP, error) {
	if ip := literalIPv4(host); ip != nil {
		return ip, nil
	}
	ips, err := c.lookup(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, ErrUnresolved
}

// Generation is the config generation the endpoint table was built from.
func (c *Client) Generation() uint64 {
	if t := c.table.Load(); t != nil {
		return t.generation
	}
	return 0
}

// Unresolved lists hosts from the last Resolve that have no address.
func (c *Client) Unresolved() []string {
	if t := c.table.Load(); t != nil {
		return t.failed
	}
	return nil
}

// Send writes one datagram per endpoint. Failures are collected, one
// *TransportError per endpoint, and never retried.
func (c *Client) Send(cmd processor.LightCommand) error {
	payload, err := SetPilot(cmd.Color, cmd.Brightness)
	if err != nil {
		return fmt.Errorf("encode setPilot: %w", err)
	}

	port := int(c.cfg.UDPPort.Load())
	t := c.table.Load()
	var errs []error
	for _, host := range cmd.Endpoints {
		ip := literalIPv4(host)
		if ip == nil && t != nil {
			ip = t.addrs[host]
		}
		if ip == nil {
			errs = append(errs, &TransportError{Endpoint: host, Err: ErrUnresolved})
			continue
		}
		if err := c.sendTo(&net.UDPAddr{IP: ip, Port: port}, payload); err != nil {
			errs = append(errs, &TransportError{Endpoint: host, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (c *Client) sendTo(addr *net.UDPAddr, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	_, err := c.conn.WriteToUDP(payload, addr)
	return err
}

// Close releases the socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

func literalIPv4(host string) net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return ip.To4()
	}
	return nil
}
