package util

import (
	"sync"

	"SafeStack/pkg/logger"

	"go.uber.org/zap"
)

// SigHandler receives the emitting object and optional parameters.
type SigHandler func(sender any, params ...any)

// Signals is a tiny in-process event bus keyed by signal name.
type Signals struct {
	mu       sync.RWMutex
	handlers map[string][]SigHandler
}

var (
	sigOnce sync.Once
	sig     *Signals
)

// Sig returns the process wide bus.
func Sig() *Signals {
	sigOnce.Do(func() { sig = NewSignals() })
	return sig
}

func NewSignals() *Signals {
	return &Signals{handlers: make(map[string][]SigHandler)}
}

// Connect registers handler for name.
func (s *Signals) Connect(name string, handler SigHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = append(s.handlers[name], handler)
}

// Emit calls every handler of name in registration order. A panicking handler
// is logged and does not stop the others.
func (s *Signals) Emit(name string, sender any, params ...any) {
	s.mu.RLock()
	hs := append([]SigHandler(nil), s.handlers[name]...)
	s.mu.RUnlock()

	for _, h := range hs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("signal handler panic", zap.String("signal", name), zap.Any("recover", r))
				}
			}()
			h(sender, params...)
		}()
	}
}

// Clear drops every handler, used by tests.
func (s *Signals) Clear() {
	s.mu.Lock()
	s.handlers = make(map[string][]SigHandler)
	s.mu.Unlock()
}
