package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDriver(t *testing.T) {
	cases := map[string]string{
		"pg":         "postgres",
		"PostgreSQL": "postgres",
		"":           "memory",
		"mem":        "memory",
		" redis ":    "redis",
		"mongo":      "mongo",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeDriver(in), in)
	}
}

func TestRetentionUsesLongestWindow(t *testing.T) {
	cfg := Config{PINTTL: 10 * time.Minute, ResendCooldown: time.Minute}
	assert.Equal(t, 24*time.Hour+10*time.Minute, cfg.Retention())

	cfg = Config{PINTTL: time.Minute, ResendCooldown: 5 * time.Minute}
	assert.Equal(t, 24*time.Hour+5*time.Minute, cfg.Retention())
}

func TestOpenUnknownAdapter(t *testing.T) {
	_, err := Open(context.Background(), AdapterConfig{Name: "cassandra"})
	assert.Error(t, err)
}
