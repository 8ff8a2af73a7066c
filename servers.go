package memcache

import "errors"

var ErrNoServers = errors.New("memcache: no servers available")

// Servers provides the current list of server addresses. Implementations
// may be static or backed by service discovery; List must be safe for
// concurrent use.
type Servers interface {
	List() []string
}

type staticServers struct {
	addresses []string
}

// NewStaticServers returns a fixed server list.
func NewStaticServers(addresses ...string) Servers {
	return &staticServers{addresses: addresses}
}

func (s *staticServers) List() []string {
	return s.addresses
}
