package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddrs(t *testing.T) {
	assert.Equal(t, []string{"localhost:9000"}, addrs("localhost:9000"))
	assert.Equal(t, []string{"ch1:9000", "ch2:9000"}, addrs("clickhouse://ch1:9000, ch2:9000?dial_timeout=5s"))
	assert.Empty(t, addrs(""))
}
