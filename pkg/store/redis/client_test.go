// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// fakeClient serves the commands create, get and list issue from memory.
// Any other command panics through the nil embedded client.
type fakeClient struct {
	redis.UniversalClient

	mu      sync.Mutex
	strings map[string]string
	sets    map[string]map[string]struct{}

	failSAdd  error
	failSetNX error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		strings: map[string]string{},
		sets:    map[string]map[string]struct{}{},
	}
}

func (f *fakeClient) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetNX != nil {
		return redis.NewBoolResult(false, f.failSetNX)
	}
	if _, ok := f.strings[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	switch v := value.(type) {
	case []byte:
		f.strings[key] = string(v)
	case string:
		f.strings[key] = v
	default:
		return redis.NewBoolResult(false, fmt.Errorf("unsupported value %T", value))
	}
	return redis.NewBoolResult(true, nil)
}

func (f *fakeClient) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSAdd != nil {
		return redis.NewIntResult(0, f.failSAdd)
	}
	set, ok := f.sets[key]
	if !ok {
		set = map[string]struct{}{}
		f.sets[key] = set
	}
	var added int64
	for _, m := range members {
		id := fmt.Sprint(m)
		if _, ok := set[id]; !ok {
			set[id] = struct{}{}
			added++
		}
	}
	return redis.NewIntResult(added, nil)
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.strings[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeClient) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sets[key]))
	for id := range f.sets[key] {
		out = append(out, id)
	}
	return redis.NewStringSliceResult(out, nil)
}

func (f *fakeClient) MGet(_ context.Context, keys ...string) *redis.SliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]interface{}, len(keys))
	for i, k := range keys {
		if v, ok := f.strings[k]; ok {
			out[i] = v
		}
	}
	return redis.NewSliceResult(out, nil)
}

var errConnReset = errors.New("connection reset by peer")
