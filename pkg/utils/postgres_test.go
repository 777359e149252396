package utils

import (
	"context"
	"testing"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	got := PostgresPoolConfig{}.withDefaults()
	if got.MaxOpenConns != 20 || got.MaxIdleConns != 20 {
		t.Fatalf("conns: open=%d idle=%d", got.MaxOpenConns, got.MaxIdleConns)
	}
	if got.ConnMaxLifetime != 30*time.Minute || got.ConnMaxIdleTime != 5*time.Minute {
		t.Fatalf("lifetimes: %v %v", got.ConnMaxLifetime, got.ConnMaxIdleTime)
	}
	if got.PingTimeout != 5*time.Second {
		t.Fatalf("ping timeout: %v", got.PingTimeout)
	}
}

func TestPostgresPoolConfig_IdleCappedByOpen(t *testing.T) {
	got := PostgresPoolConfig{MaxOpenConns: 4, MaxIdleConns: 10}.withDefaults()
	if got.MaxIdleConns != 4 {
		t.Fatalf("idle=%d, want 4", got.MaxIdleConns)
	}
}

func TestApplySchema_NoStatementsSkipsDB(t *testing.T) {
	// A nil pool would panic if a transaction were started.
	if err := ApplySchema(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
