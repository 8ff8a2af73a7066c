package memcache

import (
	"github.com/zeebo/xxh3"

	"github.com/cachelab/memcache/internal"
)

// SelectServerFunc picks the server address responsible for a key.
// It receives the current server list from Servers.List.
type SelectServerFunc func(key string, servers []string) (string, error)

// DefaultSelectServer hashes the key with xxh3 and maps it onto the server
// list with jump consistent hashing, so adding or removing one server only
// remaps 1/n of the keyspace.
func DefaultSelectServer(key string, servers []string) (string, error) {
	switch len(servers) {
	case 0:
		return "", ErrNoServers
	case 1:
		return servers[0], nil
	}

	return servers[internal.JumpHash(xxh3.HashString(key), len(servers))], nil
}
