package memcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticServers(t *testing.T) {
	servers := NewStaticServers("a:11211", "b:11211")
	assert.Equal(t, []string{"a:11211", "b:11211"}, servers.List())
}

func TestStaticServersEmpty(t *testing.T) {
	assert.Empty(t, NewStaticServers().List())
}
