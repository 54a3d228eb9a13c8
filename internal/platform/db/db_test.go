package db

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNewRejectsBadDSN(t *testing.T) {
	_, err := New(context.Background(), "postgres://%zz")
	if err == nil || !strings.Contains(err.Error(), "parse db dsn") {
		t.Fatalf("got %v, want parse error", err)
	}
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pool, err := New(ctx, "postgres://u:p@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	if err == nil {
		pool.Close()
		t.Fatal("expected ping error")
	}
}
