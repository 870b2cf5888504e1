// Package formats identifies the document formats nbprep processes.
//
// Handlers register themselves at init time; callers ask the registry what
// a path is instead of hardcoding extension checks. Detection is a cheap
// sniff (extension plus a content peek), not a full validation pass.
package formats

import (
	"sync"
)

// Format names returned by handlers.
const (
	FormatNotebook = "notebook"
	FormatLaTeX    = "latex"
)

// DetectResult reports whether a handler recognized a path and why.
type DetectResult struct {
	Detected bool   `json:"detected"`
	Format   string `json:"format,omitempty"`
	Reason   string `json:"reason"`
}

// Handler recognizes one document format.
type Handler interface {
	// Name returns the format name.
	Name() string
	// Detect reports whether path is this handler's format.
	Detect(path string) (*DetectResult, error)
}

var registry struct {
	mu       sync.RWMutex
	handlers []Handler
}

// Register adds a handler to the registry. Handlers are consulted in
// registration order.
func Register(h Handler) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.handlers = append(registry.handlers, h)
}

// Handlers returns the registered handlers.
func Handlers() []Handler {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	out := make([]Handler, len(registry.handlers))
	copy(out, registry.handlers)
	return out
}

// Lookup returns the handler with the given name.
func Lookup(name string) (Handler, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	for _, h := range registry.handlers {
		if h.Name() == name {
			return h, true
		}
	}
	return nil, false
}

// Detect asks each handler in turn and returns the first positive result.
// When nothing matches, the result carries Detected=false.
func Detect(path string) (*DetectResult, error) {
	for _, h := range Handlers() {
		res, err := h.Detect(path)
		if err != nil {
			return nil, err
		}
		if res.Detected {
			return res, nil
		}
	}
	return &DetectResult{
		Detected: false,
		Reason:   "no handler recognized the file",
	}, nil
}

// IsNotebook reports whether path is a processable Jupyter notebook.
func IsNotebook(path string) bool {
	res, err := Detect(path)
	return err == nil && res.Detected && res.Format == FormatNotebook
}
