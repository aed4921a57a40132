package probe

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// family identifies which address family a successful connect landed on
// (spec.md §4.2 step 3).
type family int

const (
	familyUnknown family = iota
	familyIPv4
	familyIPv6
)

// ConnPool is the TCP connection pool collaborator (spec.md §6 "Consumed").
// It is out of scope to fully implement — the poller only needs a timed
// connect and the resulting address family — but a concrete implementation
// is required to have a runnable module, so dialConnPool below provides one
// grounded in the teacher's dial-with-deadline style
// (pkg/services.HealthChecker.checkService, pkg/probe executeTCPProbe).
type ConnPool interface {
	// Reference resolves host to its IPv4/IPv6 addresses and returns an
	// opaque handle good for repeated Open calls. Addresses are re-resolved
	// lazily; Reference itself never dials.
	Reference(host string, port int) (PoolHandle, error)

	// Release drops a handle obtained from Reference. Idempotent.
	Release(PoolHandle)

	// Open dials a connection using the handle's cached addresses, honoring
	// deadline. It returns the family the connection landed on.
	Open(ctx context.Context, h PoolHandle, deadline time.Time) (net.Conn, family, error)
}

// PoolHandle is an opaque reference returned by ConnPool.Reference.
type PoolHandle interface{}

// dialConnPool is the default ConnPool: a DNS-backed resolver cache plus a
// plain net.Dialer. Resolution failures fall back to using the host string
// directly with net.Dial's own resolution, so a pool built without a
// reachable resolver still degrades to ordinary dialing.
type dialConnPool struct {
	resolverAddr string // "ip:port" of the DNS server used for A/AAAA lookups
	dialer       net.Dialer

	mu    sync.Mutex
	cache map[string]*poolEntry
}

type poolEntry struct {
	host    string
	port    int
	refs    int
	v4      []net.IP
	v6      []net.IP
	resolvedAt time.Time
}

// NewDialConnPool builds a ConnPool that resolves backend hostnames via the
// given recursive resolver (e.g. "127.0.0.53:53" or "8.8.8.8:53"). Pass an
// empty resolverAddr to rely solely on net.Dial's built-in resolution.
func NewDialConnPool(resolverAddr string) ConnPool {
	return &dialConnPool{
		resolverAddr: resolverAddr,
		cache:        make(map[string]*poolEntry),
	}
}

func (p *dialConnPool) key(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

func (p *dialConnPool) Reference(host string, port int) (PoolHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := p.key(host, port)
	e, ok := p.cache[k]
	if !ok {
		e = &poolEntry{host: host, port: port}
		p.cache[k] = e
	}
	e.refs++

	if p.resolverAddr != "" && time.Since(e.resolvedAt) > 30*time.Second {
		v4, v6 := p.resolve(host)
		e.v4, e.v6, e.resolvedAt = v4, v6, time.Now()
	}

	return e, nil
}

func (p *dialConnPool) Release(h PoolHandle) {
	e, ok := h.(*poolEntry)
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e.refs--
	if e.refs <= 0 {
		delete(p.cache, p.key(e.host, e.port))
	}
}

func (p *dialConnPool) resolve(host string) (v4, v6 []net.IP) {
	if net.ParseIP(host) != nil {
		ip := net.ParseIP(host)
		if ip.To4() != nil {
			return []net.IP{ip}, nil
		}
		return nil, []net.IP{ip}
	}

	c := new(dns.Client)
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(host), qtype)
		resp, _, err := c.Exchange(m, p.resolverAddr)
		if err != nil || resp == nil {
			continue
		}
		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				v4 = append(v4, rec.A)
			case *dns.AAAA:
				v6 = append(v6, rec.AAAA)
			}
		}
	}
	return v4, v6
}

// Open dials the backend, preferring whichever family has a cached address,
// and reports the family that answered (spec.md §4.2 step 3: "any other
// family is a programming error" — reached only if neither v4 nor v6
// addresses nor hostname-based dialing succeed in a recognizable way).
func (p *dialConnPool) Open(ctx context.Context, h PoolHandle, deadline time.Time) (net.Conn, family, error) {
	e, ok := h.(*poolEntry)
	if !ok {
		return nil, familyUnknown, fmt.Errorf("probe: invalid pool handle")
	}

	dialer := p.dialer
	dialer.Deadline = deadline

	addr := net.JoinHostPort(e.host, fmt.Sprintf("%d", e.port))
	if len(e.v4) == 0 && len(e.v6) == 0 {
		// No cached resolution (no resolver configured, or the resolver
		// returned no addresses): let net.Dial resolve and connect in one step.
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, familyUnknown, err
		}
		return conn, familyOf(conn), nil
	}

	var lastErr error
	for _, ip := range append(append([]net.IP{}, e.v4...), e.v6...) {
		target := net.JoinHostPort(ip.String(), fmt.Sprintf("%d", e.port))
		conn, err := dialer.DialContext(ctx, "tcp", target)
		if err == nil {
			return conn, familyOf(conn), nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("probe: no addresses for %s", e.host)
	}
	return nil, familyUnknown, lastErr
}

func familyOf(conn net.Conn) family {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return familyUnknown
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return familyUnknown
	}
	if ip.To4() != nil {
		return familyIPv4
	}
	return familyIPv6
}
