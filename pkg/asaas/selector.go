package asaas

import (
	"sync"
	"time"
)

// Selector hands out one cached client per environment. Keys for unused
// environments may be empty; ClientFor fails only when the requested one is.
type Selector struct {
	timeout time.Duration
	keys    map[Env]string

	mu      sync.Mutex
	clients map[Env]*Client
}

func NewSelector(sandboxKey, productionKey string, timeout time.Duration) *Selector {
	return &Selector{
		timeout: timeout,
		keys: map[Env]string{
			EnvSandbox:    sandboxKey,
			EnvProduction: productionKey,
		},
		clients: make(map[Env]*Client),
	}
}

func (s *Selector) ClientFor(env Env) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[env]; ok {
		return c, nil
	}
	c, err := NewClient(Config{APIKey: s.keys[env], Env: env, Timeout: s.timeout})
	if err != nil {
		return nil, err
	}
	s.clients[env] = c
	return c, nil
}
