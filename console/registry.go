package console

import (
	"errors"
	"strings"
	"sync"
)

// MaxCommandWords is the longest command name, in words, the registry matches.
const MaxCommandWords = 3

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArguments   = errors.New("bad arguments")
)

// Handler runs a command. args holds the words after the command name.
type Handler func(args []string, r *Reply) error

// Command is one console command, e.g. "D RAM RESET".
type Command struct {
	Name    string
	Usage   string // Argument summary for help output, e.g. "pin"
	Handler Handler
}

// Registry maps command names to handlers. Names are matched case
// sensitively on whole words, longest name first.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
	order    []string
	help     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
	}
}

// Register adds a command. Registering a name twice keeps the first handler.
func (r *Registry) Register(name, usage string, handler Handler) {
	name = strings.Join(strings.Fields(name), " ")
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return
	}
	r.commands[name] = &Command{
		Name:    name,
		Usage:   usage,
		Handler: handler,
	}
	r.order = append(r.order, name)
	r.rebuildHelp()
}

// Lookup finds the command matching the longest prefix of words and
// returns it with the remaining arguments.
func (r *Registry) Lookup(words []string) (*Command, []string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(words)
	if n > MaxCommandWords {
		n = MaxCommandWords
	}
	for ; n > 0; n-- {
		if cmd, ok := r.commands[strings.Join(words[:n], " ")]; ok {
			return cmd, words[n:], true
		}
	}
	return nil, nil, false
}

// Dispatch runs the command named by words.
func (r *Registry) Dispatch(words []string, reply *Reply) error {
	cmd, args, ok := r.Lookup(words)
	if !ok {
		return ErrUnknownCommand
	}
	return cmd.Handler(args, reply)
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Help returns one line per command in registration order.
func (r *Registry) Help() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.help
}

// rebuildHelp must be called with the lock held.
func (r *Registry) rebuildHelp() {
	var b strings.Builder
	for _, name := range r.order {
		cmd := r.commands[name]
		b.WriteString(cmd.Name)
		if cmd.Usage != "" {
			b.WriteByte(' ')
			b.WriteString(cmd.Usage)
		}
		b.WriteByte('\n')
	}
	r.help = b.String()
}
