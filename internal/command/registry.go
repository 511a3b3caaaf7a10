package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler runs a command. The result is command specific and may be nil.
type Handler func(ctx context.Context) (any, error)

// Command is a user-invocable operation.
type Command struct {
	// ID is the unique command identifier.
	ID string

	// Title is the human-readable name.
	Title string

	// Category groups commands in listings.
	Category string

	// Handler runs the command.
	Handler Handler
}

// Info is the listing form of a command.
type Info struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}

// Registry holds commands by ID.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// Register adds a command.
func (r *Registry) Register(cmd Command) error {
	if cmd.ID == "" || cmd.Handler == nil {
		return fmt.Errorf("%w: %q", ErrInvalid, cmd.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, cmd.ID)
	}
	r.commands[cmd.ID] = cmd
	return nil
}

// Unregister removes a command. It reports whether one was removed.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[id]; !exists {
		return false
	}
	delete(r.commands, id)
	return true
}

// Get returns the command registered under id.
func (r *Registry) Get(id string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// All returns every command's listing, sorted by ID.
func (r *Registry) All() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, Info{ID: cmd.ID, Title: cmd.Title, Category: cmd.Category})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Execute runs the command registered under id. A panicking handler is
// recovered and reported as ErrPanic.
func (r *Registry) Execute(ctx context.Context, id string) (result any, err error) {
	cmd, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("%w: %s: %v", ErrPanic, id, rec)
		}
	}()

	return cmd.Handler(ctx)
}
