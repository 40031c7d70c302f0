package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/2", false},
		{"bad-scheme", "http://localhost:6379", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := New(ctx, "redis://localhost:59999")
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}

func TestEmptyKey(t *testing.T) {
	c := NewFromClient(redis.NewClient(&redis.Options{Addr: "localhost:59999"}))
	defer c.Close()
	ctx := context.Background()

	var v map[string]any
	if err := c.GetJSON(ctx, "", &v); !errors.Is(err, ErrCacheKeyEmpty) {
		t.Errorf("GetJSON empty key: got %v", err)
	}
	if err := c.SetJSON(ctx, "", v, 0); !errors.Is(err, ErrCacheKeyEmpty) {
		t.Errorf("SetJSON empty key: got %v", err)
	}
	if err := c.Publish(ctx, "", v); !errors.Is(err, ErrCacheKeyEmpty) {
		t.Errorf("Publish empty channel: got %v", err)
	}
	if err := c.Delete(ctx); err != nil {
		t.Errorf("Delete with no keys: got %v", err)
	}
}

func TestSetJSON_Unserializable(t *testing.T) {
	c := NewFromClient(redis.NewClient(&redis.Options{Addr: "localhost:59999"}))
	defer c.Close()
	err := c.SetJSON(context.Background(), "k", make(chan int), 0)
	if !errors.Is(err, ErrCacheSerialization) {
		t.Errorf("got %v, want ErrCacheSerialization", err)
	}
}
