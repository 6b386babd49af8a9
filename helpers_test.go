package sieve_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/sieve/pkg/domain"
	"github.com/aretw0/sieve/pkg/ports"
)

type staticSource map[string]string

func (s staticSource) Read(ctx context.Context, path string) (string, error) {
	text, ok := s[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrSourceNotFound, path)
	}
	return text, nil
}

type discardOutput struct{}

func (discardOutput) Write(ctx context.Context, dir string, parsed []byte, model string, at time.Time) (string, error) {
	return dir + "/output/discarded.json", nil
}

type recordingLocker struct {
	mu   sync.Mutex
	ttls []time.Duration
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ttls = append(l.ttls, ttl)
	return func(context.Context) error { return nil }, nil
}
