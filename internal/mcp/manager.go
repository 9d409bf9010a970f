package mcp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/tool"
	"github.com/fsnotify/fsnotify"
)

// Manager owns one *Server per configured MCP server and keeps a Registry
// populated with their prefixed tools. Connection is lazy: Manager never
// dials a server at construction time; a server connects the first time
// List or ListAll is called for it, and its tools enter the registry only
// then (§4.6).
type Manager struct {
	mu       sync.RWMutex
	servers  map[string]*Server
	registry *tool.Registry
	path     string
	watcher  *fsnotify.Watcher
	stop     chan struct{}
}

// NewManager builds a Manager from the given server declarations. It
// connects no server and registers no tool; List and ListAll do both,
// registering each connected server's tool wrappers into reg.
func NewManager(servers []config.MCPServerConfig, reg *tool.Registry) *Manager {
	m := &Manager{servers: map[string]*Server{}, registry: reg}
	for _, sc := range servers {
		m.addServer(sc)
	}
	return m
}

func (m *Manager) addServer(sc config.MCPServerConfig) {
	s := newServer(sc)
	m.mu.Lock()
	m.servers[sc.ID] = s
	m.mu.Unlock()

	if sc.Disabled {
		return
	}
	// Tool identities are known before connecting only if the config itself
	// declares them; since MCP requires a live tools/list round trip, a
	// server's tools populate the registry lazily once a caller triggers a
	// connection via List or ListAll. Eagerly connecting here would violate
	// the "never on startup" rule.
}

// List returns the tools currently known for a server, connecting it first
// if it has never been connected.
func (m *Manager) List(ctx context.Context, serverID string) ([]tool.Tool, error) {
	m.mu.RLock()
	s, ok := m.servers[serverID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tool.Tool, 0, len(s.tools))
	for _, w := range s.tools {
		out = append(out, w)
		m.registry.Register(w)
	}
	return out, nil
}

// ListAll connects every non-disabled server and registers its tools,
// returning one error per server that failed (a disabled server reports an
// error too). cmd/agentcore calls it once at startup to populate the
// combined registry for presentation to providers.
func (m *Manager) ListAll(ctx context.Context) []error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.servers))
	for id := range m.servers {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if _, err := m.List(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (m *Manager) Server(id string) (*Server, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.servers[id]
	return s, ok
}

// Watch starts a config-file watcher that reloads server declarations on
// change with a 500ms debounce (§4.6), using fsnotify rather than polling.
// Reload replaces the server set: removed servers are closed and their
// tools unregistered; every declared server, changed or not, is closed and
// replaced by a fresh, unconnected one. Tool wrappers already in the
// registry keep pointing at the Server they were listed from until List or
// ListAll registers the new Server's tools.
func (m *Manager) Watch(configPath string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(configPath); err != nil {
		w.Close()
		return err
	}

	m.mu.Lock()
	m.path = configPath
	m.watcher = w
	m.stop = make(chan struct{})
	m.mu.Unlock()

	go m.watchLoop(w, m.stop)
	return nil
}

func (m *Manager) watchLoop(w *fsnotify.Watcher, stop chan struct{}) {
	var debounce *time.Timer
	reload := func() {
		if err := m.reload(); err != nil {
			slog.Warn("mcp config reload failed", "error", err)
		}
	}
	for {
		select {
		case <-stop:
			if debounce != nil {
				debounce.Stop()
			}
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, reload)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Warn("mcp config watcher error", "error", err)
		}
	}
}

func (m *Manager) reload() error {
	cfg, err := config.Load(m.path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]bool{}
	for _, sc := range cfg.MCPServers {
		seen[sc.ID] = true
		if old, ok := m.servers[sc.ID]; ok {
			old.Close()
		}
		m.servers[sc.ID] = newServer(sc)
	}
	for id, s := range m.servers {
		if !seen[id] {
			s.mu.Lock()
			for _, w := range s.tools {
				m.registry.Unregister(w.Name())
			}
			s.mu.Unlock()
			s.Close()
			delete(m.servers, id)
		}
	}
	return nil
}

// Close stops the watcher (if any) and closes every server connection.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.stop != nil {
		close(m.stop)
	}
	if m.watcher != nil {
		m.watcher.Close()
	}
	servers := make([]*Server, 0, len(m.servers))
	for _, s := range m.servers {
		servers = append(servers, s)
	}
	m.mu.Unlock()

	for _, s := range servers {
		s.Close()
	}
}
