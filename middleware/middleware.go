package middleware

import (
	"context"
	"errors"
	"sync"

	"github.com/semihalev/dnsredir/config"
	"github.com/semihalev/zlog/v2"
)

// Handler interface.
type Handler interface {
	Name() string
	ServeDNS(context.Context, *Chain)
}

// Sweeper is implemented by handlers holding state that expires. Sweep is
// called once per received datagram, before it is decoded.
type Sweeper interface {
	Sweep()
}

type middleware struct {
	mu sync.RWMutex

	handlers []handler
}

type handler struct {
	name string
	new  func(*config.Config) Handler
}

var (
	m             middleware
	chainHandlers []Handler
)

// Register a middleware. Registering a name twice replaces the first
// constructor and keeps its position in the chain.
func Register(name string, new func(*config.Config) Handler) {
	zlog.Debug("Register middleware", "name", name)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.handlers {
		if m.handlers[i].name == name {
			m.handlers[i].new = new
			return
		}
	}

	m.handlers = append(m.handlers, handler{name: name, new: new})
}

// Setup builds the handler chain from the registered constructors, in
// registration order. Calling it again rebuilds every handler. cfg must
// validate; constructors rely on it.
func Setup(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config required")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	handlers := make([]Handler, 0, len(m.handlers))
	for _, handler := range m.handlers {
		handlers = append(handlers, handler.new(cfg))
	}

	chainHandlers = handlers

	return nil
}

// Handlers return the handlers built by Setup.
func Handlers() []Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return chainHandlers
}

// List return names of handlers
func List() (list []string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, handler := range m.handlers {
		list = append(list, handler.name)
	}

	return list
}

// Get return a handler by name
func Get(name string) Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, handler := range m.handlers {
		if handler.name == name {
			if len(chainHandlers) <= i {
				return nil
			}
			return chainHandlers[i]
		}
	}

	return nil
}
