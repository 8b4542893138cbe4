package utils

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRedis is an in-memory RedisCommands.
type memRedis struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttl    map[string]time.Duration
	closed bool
}

func newMemRedis() *memRedis {
	return &memRedis{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (m *memRedis) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *memRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value.([]byte)...)
	m.ttl[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (m *memRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *memRedis) Scan(_ context.Context, _ uint64, match string, _ int64) *redis.ScanCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return redis.NewScanCmdResult(keys, 0, nil)
}

func (m *memRedis) Close() error {
	m.closed = true
	return nil
}

func TestRedisStorage(t *testing.T) {
	backend := newMemRedis()
	backend.data["other:keep"] = []byte("x")
	s := NewRedisStorage(backend, "rl:")

	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{"missing key reads as nil", func(t *testing.T) {
			v, err := s.Get("absent")
			require.NoError(t, err)
			assert.Nil(t, v)
		}},
		{"set stores under prefix with expiry", func(t *testing.T) {
			require.NoError(t, s.Set("user:u1", []byte("3"), time.Minute))
			assert.Equal(t, []byte("3"), backend.data["rl:user:u1"])
			assert.Equal(t, time.Minute, backend.ttl["rl:user:u1"])
			v, err := s.Get("user:u1")
			require.NoError(t, err)
			assert.Equal(t, []byte("3"), v)
		}},
		{"empty key or value is ignored", func(t *testing.T) {
			require.NoError(t, s.Set("", []byte("1"), 0))
			require.NoError(t, s.Set("empty", nil, 0))
			_, ok := backend.data["rl:empty"]
			assert.False(t, ok)
		}},
		{"delete removes key", func(t *testing.T) {
			require.NoError(t, s.Set("ip:1.2.3.4", []byte("1"), 0))
			require.NoError(t, s.Delete("ip:1.2.3.4"))
			v, err := s.Get("ip:1.2.3.4")
			require.NoError(t, err)
			assert.Nil(t, v)
		}},
		{"reset only clears the prefix", func(t *testing.T) {
			require.NoError(t, s.Set("a", []byte("1"), 0))
			require.NoError(t, s.Set("b", []byte("2"), 0))
			require.NoError(t, s.Reset())
			for k := range backend.data {
				assert.False(t, strings.HasPrefix(k, "rl:"), k)
			}
			assert.Contains(t, backend.data, "other:keep")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.run)
	}

	require.NoError(t, s.Close())
	assert.True(t, backend.closed)
}

func TestR2PublicURL(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  R2Config
		key  string
		want string
	}{
		{"cdn base", R2Config{AccountID: "acct", Bucket: "b", CDNBaseURL: "https://cdn.example.com/"}, "daily/all/20251210.json", "https://cdn.example.com/daily/all/20251210.json"},
		{"account endpoint fallback", R2Config{AccountID: "acct", Bucket: "b"}, "/daily/quiz/20251210.json", "https://acct.r2.cloudflarestorage.com/b/daily/quiz/20251210.json"},
		{"endpoint override", R2Config{Bucket: "b", Endpoint: "http://localhost:9000/"}, "k.json", "http://localhost:9000/b/k.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.AccessKey, tt.cfg.AccessSecret = "key", "secret"
			c, err := NewR2Client(ctx, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.PublicURL(tt.key))
		})
	}
}

func TestR2PutUploadsObject(t *testing.T) {
	var gotMethod, gotPath, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewR2Client(context.Background(), R2Config{
		Bucket:       "manifests",
		AccessKey:    "key",
		AccessSecret: "secret",
		CDNBaseURL:   "https://cdn.test",
		Endpoint:     srv.URL,
	})
	require.NoError(t, err)

	url, err := c.Put(context.Background(), "daily/all/20251210.json", []byte(`{"seed":20251210}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/daily/all/20251210.json", url)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/manifests/daily/all/20251210.json", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Contains(t, gotBody, `{"seed":20251210}`)
}
