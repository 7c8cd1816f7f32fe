package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"zephuris/divarworker/logger"
	scrapeerrors "zephuris/divarworker/pkg/errors"
)

// Result describes one probe of the configured upstream proxy
type Result struct {
	Host     string        `json:"host"`
	Scheme   string        `json:"scheme"`
	Latency  time.Duration `json:"latency"`
	LastTest time.Time     `json:"last_test"`
	Working  bool          `json:"working"`
}

var defaultPorts = map[string]string{
	"http":    "80",
	"https":   "443",
	"socks5":  "1080",
	"socks5h": "1080",
}

// Probe dials the proxy in rawURL and measures the connect latency.
// SOCKS5 proxies must also accept a no-auth handshake.
func Probe(ctx context.Context, rawURL string, timeout time.Duration) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, scrapeerrors.NewConfiguration("invalid proxy URL "+rawURL, err)
	}

	port, ok := defaultPorts[u.Scheme]
	if !ok {
		return nil, scrapeerrors.NewConfiguration(fmt.Sprintf("unsupported proxy scheme %q", u.Scheme), nil)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), port)
	}

	result := &Result{Host: host, Scheme: u.Scheme, LastTest: time.Now()}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", host)
	if err != nil {
		logger.ForProxy().Debug().Str("proxy", host).Err(err).Msg("TCP connection failed")
		return result, scrapeerrors.NewNetwork("proxy", "failed to connect to "+host, err)
	}
	defer conn.Close()

	if u.Scheme == "socks5" || u.Scheme == "socks5h" {
		if err := socks5Handshake(conn, timeout); err != nil {
			logger.ForProxy().Debug().Str("proxy", host).Err(err).Msg("SOCKS5 handshake failed")
			return result, scrapeerrors.NewNetwork("proxy", "SOCKS5 handshake with "+host+" failed", err)
		}
	}

	result.Working = true
	result.Latency = time.Since(start)

	logger.ForProxy().Debug().
		Str("proxy", host).
		Dur("latency", result.Latency).
		Msg("Proxy working")

	return result, nil
}

// socks5Handshake offers the no-auth method: [VER=5, NMETHODS=1, METHOD=0]
func socks5Handshake(conn net.Conn, timeout time.Duration) error {
	conn.SetDeadline(time.Now().Add(timeout))
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		return err
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return err
	}
	if resp[0] != 0x05 || resp[1] != 0x00 {
		return fmt.Errorf("unexpected reply %x", resp)
	}
	return nil
}
