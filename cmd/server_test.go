package cmd

import (
	"testing"

	"github.com/admetric/stacksync/pkg/model"
	"github.com/stretchr/testify/assert"
)

func TestResolvePort(t *testing.T) {
	t.Cleanup(func() { httpPort = 0 })

	// config defaults always fill Server.Port, the platform PORT still wins
	cfg := &model.Config{Server: model.ServerConfig{Port: 8080}}

	httpPort = 0
	assert.Equal(t, 8080, resolvePort(cfg))

	t.Setenv("PORT", "9090")
	assert.Equal(t, 9090, resolvePort(cfg))

	httpPort = 3000
	assert.Equal(t, 3000, resolvePort(cfg), "explicit flag beats everything")

	httpPort = 0
	t.Setenv("PORT", "not-a-port")
	assert.Equal(t, 8080, resolvePort(cfg))

	cfg.Server.Port = 0
	assert.Equal(t, 8080, resolvePort(cfg), "fallback when nothing is set")
}
