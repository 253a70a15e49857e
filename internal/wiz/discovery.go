package wiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"slices"
	"time"
)

// Bulb is a discovered light.
type Bulb struct {
	IP  string `json:"ip"`
	MAC string `json:"mac"`
}

// DiscoverOptions controls a discovery round.
type DiscoverOptions struct {
	// Broadcast is the destination address; defaults to 255.255.255.255.
	Broadcast string
	Port      int
	Timeout   time.Duration
	// Interval between repeated registration broadcasts; bulbs miss the
	// occasional datagram.
	Interval time.Duration
}

// DefaultDiscoverOptions returns the settings used by the discover command.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{
		Broadcast: "255.255.255.255",
		Port:      DefaultPort,
		Timeout:   5 * time.Second,
		Interval:  time.Second,
	}
}

type registrationParams struct {
	PhoneMAC string `json:"phoneMac"`
	Register bool   `json:"register"`
	PhoneIP  string `json:"phoneIp"`
	ID       string `json:"id"`
}

type registrationReply struct {
	Method string `json:"method"`
	Result struct {
		MAC     string `json:"mac"`
		Success bool   `json:"success"`
	} `json:"result"`
}

// Discover broadcasts registration requests until the timeout or ctx ends
// and returns every bulb that replied, sorted by IP.
func Discover(ctx context.Context, opts DiscoverOptions) ([]Bulb, error) {
	def := DefaultDiscoverOptions()
	if opts.Broadcast == "" {
		opts.Broadcast = def.Broadcast
	}
	if opts.Port == 0 {
		opts.Port = def.Port
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("open discovery socket: %w", err)
	}
	defer conn.Close()

	dst, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(opts.Broadcast, fmt.Sprint(opts.Port)))
	if err != nil {
		return nil, fmt.Errorf("resolve broadcast address: %w", err)
	}

	msg, err := json.Marshal(request{
		Method: "registration",
		Params: registrationParams{PhoneMAC: "AAAAAAAAAAAA", PhoneIP: "1.2.3.4", ID: "1"},
	})
	if err != nil {
		return nil, fmt.Errorf("encode registration: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	go func() {
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()
		for {
			// Send errors are ignored; a missed broadcast is retried next tick.
			_, _ = conn.WriteToUDP(msg, dst)
			select {
			case <-ctx.Done():
				_ = conn.SetReadDeadline(time.Now())
				return
			case <-ticker.C:
			}
		}
	}()

	found := make(map[string]Bulb)
	buf := make([]byte, 2048)
	for {
		deadline, _ := ctx.Deadline()
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() || ctx.Err() != nil {
				break
			}
			return nil, fmt.Errorf("read discovery reply: %w", err)
		}

		var reply registrationReply
		if err := json.Unmarshal(buf[:n], &reply); err != nil || reply.Method != "registration" {
			continue
		}
		ip := from.IP.String()
		found[ip] = Bulb{IP: ip, MAC: reply.Result.MAC}
	}

	bulbs := make([]Bulb, 0, len(found))
	for _, b := range found {
		bulbs = append(bulbs, b)
	}
	slices.SortFunc(bulbs, func(a, b Bulb) int {
		return compareIP(a.IP, b.IP)
	})
	return bulbs, nil
}

func compareIP(a, b string) int {
	ia, ib := net.ParseIP(a).To16(), net.ParseIP(b).To16()
	if ia == nil || ib == nil {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	return slices.Compare(ia, ib)
}
