package tools

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/agentcore/agentcore/pkg/api"
)

// BuiltinNamespace is the namespace whose tools win short-alias conflicts.
const BuiltinNamespace = "builtin"

// Descriptor is a registered tool together with its resolved names and the
// static headers of the toolset that provides it.
type Descriptor struct {
	Tool      Tool
	Namespace string
	// FullName is "namespace.name" and always addresses the tool uniquely.
	FullName string
	// ShortName is the bare tool name when this tool owns the alias, empty
	// when another namespace shadows it.
	ShortName string
	Headers   map[string]string
}

// Universal converts the descriptor into the transport-neutral tool shape
// advertised to clients.
func (d Descriptor) Universal() api.UniversalTool {
	params, _ := d.Tool.ParametersMap()
	meta := map[string]string{"namespace": d.Namespace}
	if d.Tool.Annotations.ReadOnlyHint {
		meta["read_only"] = "true"
	}
	return api.UniversalTool{
		Name:        d.FullName,
		Description: d.Tool.Description,
		Parameters:  params,
		Metadata:    meta,
	}
}

type registryEntry struct {
	namespace string
	toolset   ToolSet
	headers   map[string]string
}

// RegisterOption customizes a toolset registration.
type RegisterOption func(*registryEntry)

// WithStaticHeaders attaches base headers to every tool of the namespace.
// They sit at the bottom of the header precedence order.
func WithStaticHeaders(headers map[string]string) RegisterOption {
	return func(e *registryEntry) {
		e.headers = headers
	}
}

// Registry indexes toolsets by namespace and resolves tool names for agents.
//
// Tools address as "namespace.name". Bare names resolve through a
// deterministic alias table: the builtin namespace claims its names first,
// remaining namespaces claim theirs in lexical order, and the first claim
// wins. Listing order follows the same rule so that alias assignment never
// depends on registration order.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds a toolset under a namespace. Namespaces are unique and must
// not contain the "." separator.
func (r *Registry) Register(namespace string, ts ToolSet, opts ...RegisterOption) error {
	if namespace == "" {
		return errors.New("tools: namespace must not be empty")
	}
	if strings.Contains(namespace, ".") {
		return fmt.Errorf("tools: namespace %q must not contain '.'", namespace)
	}
	if ts == nil {
		return fmt.Errorf("tools: toolset for namespace %q is nil", namespace)
	}

	entry := &registryEntry{namespace: namespace, toolset: ts}
	for _, opt := range opts {
		opt(entry)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[namespace]; exists {
		return fmt.Errorf("tools: namespace %q already registered", namespace)
	}
	r.entries[namespace] = entry
	return nil
}

// Namespaces returns the registered namespaces in alias-priority order.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orderedNamespaces()
}

func (r *Registry) orderedNamespaces() []string {
	names := make([]string, 0, len(r.entries))
	for ns := range r.entries {
		if ns != BuiltinNamespace {
			names = append(names, ns)
		}
	}
	slices.Sort(names)
	if _, ok := r.entries[BuiltinNamespace]; ok {
		names = append([]string{BuiltinNamespace}, names...)
	}
	return names
}

// List enumerates every registered tool with its alias assignment.
func (r *Registry) List(ctx context.Context) ([]Descriptor, error) {
	r.mu.RLock()
	ordered := r.orderedNamespaces()
	entries := make([]*registryEntry, 0, len(ordered))
	for _, ns := range ordered {
		entries = append(entries, r.entries[ns])
	}
	r.mu.RUnlock()

	var descriptors []Descriptor
	shortOwner := make(map[string]bool)
	for _, entry := range entries {
		toolList, err := entry.toolset.Tools(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing tools for namespace %q: %w", entry.namespace, err)
		}
		for _, tool := range toolList {
			d := Descriptor{
				Tool:      tool,
				Namespace: entry.namespace,
				FullName:  entry.namespace + "." + tool.Name,
				Headers:   entry.headers,
			}
			if !shortOwner[tool.Name] {
				shortOwner[tool.Name] = true
				d.ShortName = tool.Name
			}
			descriptors = append(descriptors, d)
		}
	}
	return descriptors, nil
}

// Resolve maps declared tool names to descriptors, applying permissions.
// Unknown names fail with tool.not_declared; names the permissions deny fail
// with tool.unauthorized. The result preserves declaration order with
// duplicates removed.
func (r *Registry) Resolve(ctx context.Context, names []string, perms *api.Permissions) ([]Descriptor, error) {
	descriptors, err := r.List(ctx)
	if err != nil {
		return nil, api.WrapError(api.CodeFrameworkUnavailable, err)
	}

	index := make(map[string]Descriptor, len(descriptors)*2)
	for _, d := range descriptors {
		index[d.FullName] = d
		if d.ShortName != "" {
			index[d.ShortName] = d
		}
	}

	resolved := make([]Descriptor, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		d, ok := index[name]
		if !ok {
			return nil, api.Errorf(api.CodeToolNotDeclared, "tool %q is not registered", name).
				WithDetail("tool", name)
		}
		if !perms.Allows(d.FullName, d.Tool.Name) {
			return nil, api.Errorf(api.CodeToolUnauthorized, "tool %q is not permitted", name).
				WithDetail("tool", d.FullName)
		}
		if seen[d.FullName] {
			continue
		}
		seen[d.FullName] = true
		resolved = append(resolved, d)
	}
	return resolved, nil
}

// Lookup finds a single tool by full or short name for execution.
func (r *Registry) Lookup(ctx context.Context, name string) (Descriptor, error) {
	descriptors, err := r.List(ctx)
	if err != nil {
		return Descriptor{}, api.WrapError(api.CodeFrameworkUnavailable, err)
	}
	for _, d := range descriptors {
		if d.FullName == name || (d.ShortName != "" && d.ShortName == name) {
			return d, nil
		}
	}
	return Descriptor{}, api.Errorf(api.CodeToolNotFound, "tool %q not found", name).
		WithDetail("tool", name)
}

// Instructions collects usage guidance from instructable toolsets, in
// namespace order.
func (r *Registry) Instructions() []string {
	r.mu.RLock()
	ordered := r.orderedNamespaces()
	entries := make([]*registryEntry, 0, len(ordered))
	for _, ns := range ordered {
		entries = append(entries, r.entries[ns])
	}
	r.mu.RUnlock()

	var instructions []string
	for _, entry := range entries {
		if text := GetInstructions(entry.toolset); text != "" {
			instructions = append(instructions, text)
		}
	}
	return instructions
}

// Start starts every startable toolset. Errors are joined; toolsets that
// fail to start do not block the others.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.RLock()
	entries := make([]*registryEntry, 0, len(r.entries))
	for _, ns := range r.orderedNamespaces() {
		entries = append(entries, r.entries[ns])
	}
	r.mu.RUnlock()

	var errs []error
	for _, entry := range entries {
		if startable, ok := As[Startable](entry.toolset); ok {
			if err := startable.Start(ctx); err != nil {
				errs = append(errs, fmt.Errorf("starting toolset %q: %w", entry.namespace, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Stop stops every startable toolset in reverse namespace order.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.RLock()
	ordered := r.orderedNamespaces()
	entries := make([]*registryEntry, 0, len(ordered))
	for i := len(ordered) - 1; i >= 0; i-- {
		entries = append(entries, r.entries[ordered[i]])
	}
	r.mu.RUnlock()

	var errs []error
	for _, entry := range entries {
		if startable, ok := As[Startable](entry.toolset); ok {
			if err := startable.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("stopping toolset %q: %w", entry.namespace, err))
			}
		}
	}
	return errors.Join(errs...)
}
