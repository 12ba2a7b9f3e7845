// Package registry holds the active set of modules contributing
// components, systems, and commands to a container, and resolves system
// execution order via a topological sort of their declared dependencies.
package registry

import (
	"sort"
	"sync"

	"github.com/matchforge/simcore/pkg/simerr"
	"github.com/matchforge/simcore/pkg/types"
)

// ComponentStore is the narrow view of the store a registry mutates when
// installing components or unsetting ones dropped on reload.
type ComponentStore interface {
	RegisterComponent(module, name string, perm types.PermissionLevel) types.ComponentId
	ComponentID(name string) (types.ComponentId, bool)
	UnsetComponentForAll(c types.ComponentId)
}

// CommandSink receives command registrations; satisfied by pkg/command.Queue.
type CommandSink interface {
	Register(d types.CommandDescriptor)
	Unregister(name string)
}

// Registry holds the currently installed modules and the system order
// derived from their declared dependencies.
type Registry struct {
	mu      sync.RWMutex
	store   ComponentStore
	cmds    CommandSink
	modules map[string]types.ModuleDescriptor
	order   []types.SystemDescriptor
}

// New creates an empty Registry backed by store and cmds.
func New(store ComponentStore, cmds CommandSink) *Registry {
	return &Registry{
		store:   store,
		cmds:    cmds,
		modules: make(map[string]types.ModuleDescriptor),
	}
}

// Install adds module to the registry and recomputes the system order.
// Installing a module with a name already present replaces it, as if the
// whole set were reloaded.
func (r *Registry) Install(module types.ModuleDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := cloneModules(r.modules)
	next[module.Name] = module
	return r.applyLocked(next)
}

// Reload atomically replaces the entire module set. If the new set fails
// validation (duplicate component name, cyclic system dependency), the
// previous registry is left intact and a RegistryError is returned.
func (r *Registry) Reload(modules []types.ModuleDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]types.ModuleDescriptor, len(modules))
	for _, m := range modules {
		next[m.Name] = m
	}
	return r.applyLocked(next)
}

func (r *Registry) applyLocked(next map[string]types.ModuleDescriptor) error {
	order, err := topoSort(next)
	if err != nil {
		return err
	}

	if err := checkDuplicateComponents(next); err != nil {
		return err
	}

	// Unset components that were present before and are absent now.
	prevComponents := componentNameSet(r.modules)
	nextComponents := componentNameSet(next)
	for name := range prevComponents {
		if _, stillDeclared := nextComponents[name]; stillDeclared {
			continue
		}
		if id, ok := r.store.ComponentID(name); ok {
			r.store.UnsetComponentForAll(id)
		}
	}

	// Drop commands no longer declared, register the new/changed ones.
	prevCommands := commandNameSet(r.modules)
	nextCommands := commandNameSet(next)
	for name := range prevCommands {
		if _, stillDeclared := nextCommands[name]; !stillDeclared {
			r.cmds.Unregister(name)
		}
	}
	for _, m := range next {
		for _, c := range m.Components {
			r.store.RegisterComponent(m.Name, c.Name, c.Permission)
		}
		for _, cmd := range m.Commands {
			r.cmds.Register(cmd)
		}
	}

	r.modules = next
	r.order = order
	return nil
}

// Systems returns the currently installed systems in dependency-resolved
// execution order.
func (r *Registry) Systems() []types.SystemDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.SystemDescriptor(nil), r.order...)
}

// Modules returns the currently installed module names, sorted.
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func cloneModules(m map[string]types.ModuleDescriptor) map[string]types.ModuleDescriptor {
	out := make(map[string]types.ModuleDescriptor, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func componentNameSet(modules map[string]types.ModuleDescriptor) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range modules {
		for _, c := range m.Components {
			out[c.Name] = struct{}{}
		}
	}
	return out
}

func commandNameSet(modules map[string]types.ModuleDescriptor) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range modules {
		for _, c := range m.Commands {
			out[c.Name] = struct{}{}
		}
	}
	return out
}

func checkDuplicateComponents(modules map[string]types.ModuleDescriptor) error {
	owner := make(map[string]string)
	for _, m := range modules {
		for _, c := range m.Components {
			if prev, ok := owner[c.Name]; ok && prev != m.Name {
				return simerr.Newf(simerr.RegistryError, "registry.apply",
					"duplicate component %q declared by %q and %q", c.Name, prev, m.Name)
			}
			owner[c.Name] = m.Name
		}
	}
	return nil
}

// topoSort orders every system across modules by its declared Requires
// names, using Kahn's algorithm. A cycle is reported as a RegistryError;
// the caller must leave the previous registry in place on error.
func topoSort(modules map[string]types.ModuleDescriptor) ([]types.SystemDescriptor, error) {
	bySystemName := make(map[string]types.SystemDescriptor)
	var names []string
	for _, m := range modules {
		for _, sys := range m.Systems {
			if _, dup := bySystemName[sys.Name]; dup {
				return nil, simerr.Newf(simerr.RegistryError, "registry.topoSort", "duplicate system %q", sys.Name)
			}
			bySystemName[sys.Name] = sys
			names = append(names, sys.Name)
		}
	}
	sort.Strings(names) // deterministic order among systems with no dependency relation

	inDegree := make(map[string]int, len(names))
	dependents := make(map[string][]string)
	for _, name := range names {
		inDegree[name] = 0
	}
	for _, name := range names {
		for _, dep := range bySystemName[name].Requires {
			if _, ok := bySystemName[dep]; !ok {
				return nil, simerr.Newf(simerr.RegistryError, "registry.topoSort",
					"system %q requires unknown system %q", name, dep)
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for _, name := range names {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var order []types.SystemDescriptor
	for len(queue) > 0 {
		sort.Strings(queue)
		n := queue[0]
		queue = queue[1:]
		order = append(order, bySystemName[n])

		for _, dep := range dependents[n] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(names) {
		return nil, simerr.Newf(simerr.RegistryError, "registry.topoSort", "cyclic system dependency detected")
	}
	return order, nil
}
