package importer

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

var blockedNets = mustParseCIDRs(
	"0.0.0.0/8",
	"100.64.0.0/10", // carrier-grade NAT
	"192.0.0.0/24",
	"198.18.0.0/15",
	"64:ff9b::/96",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// isPublicIP reports whether ip is routable on the public internet
func isPublicIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return false
	}
	for _, n := range blockedNets {
		if n.Contains(ip) {
			return false
		}
	}
	return true
}

// checkHost resolves host and fails if any of its addresses is not public
func (im *Importer) checkHost(ctx context.Context, host string) error {
	if im.allowPrivate {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil {
		if !isPublicIP(ip) {
			return fmt.Errorf("%w: %s is not a public address", ErrInvalidURL, host)
		}
		return nil
	}

	addrs, err := im.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve %s", ErrInvalidURL, host)
	}
	for _, a := range addrs {
		if !isPublicIP(a.IP) {
			return fmt.Errorf("%w: %s resolves to %s", ErrInvalidURL, host, a.IP)
		}
	}
	return nil
}

// dialControl runs on every connection the HTTP client opens, after DNS, so
// redirects and rebinding cannot reach a private address either
func (im *Importer) dialControl(network, address string, _ syscall.RawConn) error {
	if im.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if ip := net.ParseIP(host); ip == nil || !isPublicIP(ip) {
		return fmt.Errorf("%w: refusing to connect to %s", ErrInvalidURL, host)
	}
	return nil
}

func (im *Importer) newTransport(timeout time.Duration) *http.Transport {
	dialer := &net.Dialer{
		Timeout: timeout,
		Control: im.dialControl,
	}
	// no Proxy, so dialControl always sees the target address
	return &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
