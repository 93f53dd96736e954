package launch

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/Iron-Ham/labkeeper/internal/errors"
)

const maxPort = 65535

// ErrPortInUse is what a Prober returns (or wraps) for an occupied port.
var ErrPortInUse = errors.New("port in use")

// Prober checks whether port is free on host. It returns nil when free,
// an error matching ErrPortInUse when occupied, and any other error when the
// probe itself failed.
type Prober func(host string, port int) error

// ListenProber binds and immediately releases host:port.
func ListenProber(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		if isAddrInUse(err) {
			return fmt.Errorf("%w: %d", ErrPortInUse, port)
		}
		return err
	}
	return ln.Close()
}

// PortAllocator hands out free loopback ports. A port it has handed out stays
// reserved until Release, so a second allocation never returns a port whose
// server has not bound it yet.
type PortAllocator struct {
	host  string
	probe Prober

	mu       sync.Mutex
	reserved map[int]struct{}
}

// NewPortAllocator creates an allocator probing 127.0.0.1 with ListenProber.
func NewPortAllocator() *PortAllocator {
	return NewPortAllocatorWithProber("127.0.0.1", ListenProber)
}

// NewPortAllocatorWithProber creates an allocator with a custom host and probe.
func NewPortAllocatorWithProber(host string, probe Prober) *PortAllocator {
	return &PortAllocator{
		host:     host,
		probe:    probe,
		reserved: make(map[int]struct{}),
	}
}

// Allocate returns the first free, unreserved port at or above base and
// reserves it. It fails with PortUnavailable if a probe errors or the range
// is exhausted; there is no fallback range.
func (a *PortAllocator) Allocate(base int) (int, error) {
	if base < 1 || base > maxPort {
		return 0, errors.PortUnavailable(base, fmt.Errorf("base port out of range"))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for port := base; port <= maxPort; port++ {
		if _, taken := a.reserved[port]; taken {
			continue
		}
		err := a.probe(a.host, port)
		if err == nil {
			a.reserved[port] = struct{}{}
			return port, nil
		}
		if !errors.Is(err, ErrPortInUse) {
			return 0, errors.PortUnavailable(base, err)
		}
	}
	return 0, errors.PortUnavailable(base, fmt.Errorf("no free port in %d-%d", base, maxPort))
}

// Reserve marks port as in use without probing, e.g. for a reattached session.
func (a *PortAllocator) Reserve(port int) {
	a.mu.Lock()
	a.reserved[port] = struct{}{}
	a.mu.Unlock()
}

// Release returns port to the pool.
func (a *PortAllocator) Release(port int) {
	a.mu.Lock()
	delete(a.reserved, port)
	a.mu.Unlock()
}

// Reserved reports whether port is currently reserved.
func (a *PortAllocator) Reserved(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.reserved[port]
	return ok
}
