package provision

import (
	"time"

	"berth/internal/check"
	"berth/internal/definition"
	"berth/internal/template"
)

// DefaultSettleDelay is the pause after an instance starts, giving its
// network stack time to acquire addresses before they are read back.
const DefaultSettleDelay = 5 * time.Second

// Option configures a Registry.
type Option func(*Registry)

// WithRuntime sets the container engine backend.
func WithRuntime(rt ContainerRuntime) Option {
	check.Assert(rt != nil, "WithRuntime: runtime must not be nil")
	return func(r *Registry) { r.runtime = rt }
}

// WithRuleTable sets the NAT rule backend.
func WithRuleTable(rules RuleTable) Option {
	check.Assert(rules != nil, "WithRuleTable: rule table must not be nil")
	return func(r *Registry) { r.rules = rules }
}

// WithVariables sets the global variable scope, the outermost layer of
// every substitution.
func WithVariables(vars map[string]string) Option {
	return func(r *Registry) { r.globals = vars }
}

// WithSettleDelay overrides the post-start network settle pause.
func WithSettleDelay(d time.Duration) Option {
	return func(r *Registry) { r.settle = d }
}

// Registry loads container definitions from a directory on demand and
// caches the resulting Container entities for the life of the process.
type Registry struct {
	dir     string
	runtime ContainerRuntime
	rules   RuleTable
	globals map[string]string
	tmpl    *template.Engine
	settle  time.Duration
	cache   map[string]*Container
}

// New creates a Registry over the definitions in dir.
func New(dir string, opts ...Option) (*Registry, error) {
	r := &Registry{
		dir:    dir,
		settle: DefaultSettleDelay,
		cache:  make(map[string]*Container),
	}
	for _, o := range opts {
		o(r)
	}
	check.Assert(r.runtime != nil, "Registry.New: ContainerRuntime is required")
	check.Assert(r.rules != nil, "Registry.New: RuleTable is required")
	r.tmpl = template.New(r.globals)
	return r, nil
}

// Get returns the Container for id, loading its definition on first access.
// Fails with NotFoundError when no definition file exists and with
// DefinitionError when one exists but does not parse or validate.
func (r *Registry) Get(id string) (*Container, error) {
	if c, ok := r.cache[id]; ok {
		return c, nil
	}
	path, ok := definition.PathFor(r.dir, id)
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	def, err := definition.Load(path, id)
	if err != nil {
		return nil, &DefinitionError{ID: id, Err: err}
	}
	c := newContainer(def, r)
	r.cache[id] = c
	return c, nil
}

// Has reports whether id is cached or has a definition file, without
// loading it.
func (r *Registry) Has(id string) bool {
	if _, ok := r.cache[id]; ok {
		return true
	}
	_, ok := definition.PathFor(r.dir, id)
	return ok
}

// List enumerates the definition ids available in the directory.
func (r *Registry) List() ([]string, error) {
	return definition.List(r.dir)
}
