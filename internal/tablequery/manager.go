package tablequery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/theory-cloud/tablequery/pkg/session"
)

// Manager resolves named connections. Each connection is built on first use and
// cached; configurations with a RoleARN get their own assumed-role credentials.
type Manager struct {
	configs     map[string]*session.Config
	conns       map[string]*Connection
	factory     func(ctx context.Context, cfg *session.Config, opts ...Option) (*Connection, error)
	logger      zerolog.Logger
	defaultName string
	opts        []Option
	mu          sync.RWMutex
}

// NewManager creates a manager whose unnamed lookups resolve to defaultName.
// opts are applied to every connection the manager builds.
func NewManager(defaultName string, configs map[string]*session.Config, opts ...Option) *Manager {
	copied := make(map[string]*session.Config, len(configs))
	for name, cfg := range configs {
		copied[name] = cfg
	}

	return &Manager{
		configs:     copied,
		conns:       make(map[string]*Connection),
		factory:     New,
		logger:      NewWithClient(nil, opts...).Logger(),
		defaultName: defaultName,
		opts:        opts,
	}
}

// Connection returns the named connection, or the default one for "".
func (m *Manager) Connection(ctx context.Context, name string) (*Connection, error) {
	if name == "" {
		name = m.defaultName
	}

	m.mu.RLock()
	conn, ok := m.conns[name]
	m.mu.RUnlock()
	if ok {
		return conn, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.conns[name]; ok {
		return conn, nil
	}

	cfg, ok := m.configs[name]
	if !ok {
		return nil, fmt.Errorf("unknown connection: %s", sanitizeName(name))
	}
	conn, err := m.factory(ctx, cfg, m.opts...)
	if err != nil {
		m.logger.Warn().Str("connection", sanitizeName(name)).Msg("failed to build connection")
		return nil, fmt.Errorf("failed to create connection %s: %w", sanitizeName(name), err)
	}
	m.conns[name] = conn
	return conn, nil
}

// FromContext returns the connection named by ConnectionContext, or the default one.
func (m *Manager) FromContext(ctx context.Context) (*Connection, error) {
	return m.Connection(ctx, ConnectionNameFromContext(ctx))
}

// AddConnection registers or replaces a named configuration and drops any cached connection.
func (m *Manager) AddConnection(name string, cfg *session.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[name] = cfg
	delete(m.conns, name)
}

// RemoveConnection forgets a named configuration and its cached connection
func (m *Manager) RemoveConnection(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.configs, name)
	delete(m.conns, name)
}

// Names lists the configured connection names in order
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type connectionContextKey struct{}

// ConnectionContext records the connection name a request should use
func ConnectionContext(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, connectionContextKey{}, name)
}

// ConnectionNameFromContext returns the name stored by ConnectionContext, or ""
func ConnectionNameFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(connectionContextKey{}).(string); ok {
		return name
	}
	return ""
}

// sanitizeName masks account ids and role ARNs used as connection names before logging.
func sanitizeName(name string) string {
	if name == "" {
		return "[empty]"
	}
	if len(name) == 12 && isNumeric(name) {
		return name[:4] + "****" + name[8:]
	}
	if strings.Contains(strings.ToLower(name), "arn:aws") {
		return "[masked_arn]"
	}

	cleaned := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			return r
		}
		return -1
	}, name)
	if len(cleaned) > 20 {
		return cleaned[:20] + "..."
	}
	return cleaned
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
