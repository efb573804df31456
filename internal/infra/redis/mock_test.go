//go:build !integration

package redis

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeRedis is an in-memory RedisClient honouring expirations.
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	expires map[string]time.Time
	ttls    map[string]time.Duration

	IncrErr error
}

var _ RedisClient = (*fakeRedis)(nil)

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, expires: map[string]time.Time{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) expire(key string) {
	if at, ok := f.expires[key]; ok && time.Now().After(at) {
		delete(f.data, key)
		delete(f.expires, key)
	}
}

func (f *fakeRedis) put(key string, value interface{}, exp time.Duration) {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	default:
		f.data[key] = fmt.Sprint(v)
	}
	f.ttls[key] = exp
	delete(f.expires, key)
	if exp > 0 {
		f.expires[key] = time.Now().Add(exp)
	}
}

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put(key, value, exp)
	return nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expire(key)
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.put(key, value, exp)
	return true, nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expire(key)
	v, ok := f.data[key]
	if !ok {
		return "", Nil
	}
	return v, nil
}

func (f *fakeRedis) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	if f.IncrErr != nil {
		return 0, f.IncrErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expire(key)
	var n int64
	fmt.Sscan(f.data[key], &n)
	n++
	f.data[key] = fmt.Sprint(n)
	if n == 1 {
		f.expires[key] = time.Now().Add(window)
		f.ttls[key] = window
	}
	return n, nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
		delete(f.expires, k)
	}
	return nil
}

func (f *fakeRedis) DelIfEqual(ctx context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[key] != value {
		return false, nil
	}
	delete(f.data, key)
	delete(f.expires, key)
	return true, nil
}

func (f *fakeRedis) Close() error { return nil }
