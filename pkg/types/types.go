package types

import "math"

// EntityId identifies a live row in a container's component pool. Ids are
// stable for the entity's lifetime and are never reused within a container:
// a later create-entity call that reuses a freed row gets a fresh id.
type EntityId uint64

// ComponentId is a small integer assigned at registration time. Stable for
// the lifetime of a container instance; one component name maps to exactly
// one id.
type ComponentId uint32

// MatchId identifies a simulation match within a container. Every entity
// belonging to a match carries the match-id component set to this value's
// float64 encoding.
type MatchId uint64

// ContainerId identifies an isolated simulation runtime within a process.
type ContainerId string

// Absent is the sentinel cell value denoting "component not present on this
// entity." Modules must never write NaN as a real value; the pool rejects
// such writes with InvalidValue.
var Absent = math.NaN()

// IsAbsent reports whether a cell value is the absent sentinel. NaN != NaN
// under IEEE 754, so presence is always tested with math.IsNaN, never ==.
func IsAbsent(v float64) bool {
	return math.IsNaN(v)
}

// PermissionLevel controls which modules may write a component's cells.
type PermissionLevel string

const (
	PermissionPrivate PermissionLevel = "PRIVATE"
	PermissionRead    PermissionLevel = "READ"
	PermissionWrite   PermissionLevel = "WRITE"
)

// ComponentDeclaration is a module's registration request for one named
// component column.
type ComponentDeclaration struct {
	Name       string
	Permission PermissionLevel
}

// ParamType is the scalar type of a command parameter.
type ParamType string

const (
	ParamTypeFloat  ParamType = "float"
	ParamTypeInt    ParamType = "int"
	ParamTypeString ParamType = "string"
	ParamTypeBool   ParamType = "bool"
)

// ParamSchema describes one named, typed command parameter.
type ParamSchema struct {
	Name     string
	Type     ParamType
	Required bool
	Default  any
}

// CommandSchema is the full set of named parameters a command accepts.
type CommandSchema []ParamSchema

// Store is the narrow view of the store facade that systems and command
// handlers are given. Declared here, rather than in pkg/store, so module
// descriptors can reference it without pkg/types importing pkg/store.
type Store interface {
	Get(e EntityId, c ComponentId) (float64, bool)
	Has(e EntityId, c ComponentId) bool
	Set(module string, e EntityId, c ComponentId, value float64) error
	Unset(module string, e EntityId, c ComponentId) error
	Query(components ...ComponentId) []EntityId
	ComponentID(name string) (ComponentId, bool)
}

// SystemRunFunc is one system's per-tick body.
type SystemRunFunc func(store Store, tick uint64) error

// CommandHandlerFunc applies a validated command during a tick's drain.
type CommandHandlerFunc func(store Store, tick uint64, params map[string]any) error

// SystemDescriptor is a module's declaration of one per-tick system.
type SystemDescriptor struct {
	Name     string
	Module   string
	Requires []string
	Run      SystemRunFunc
}

// CommandDescriptor is a module's declaration of one command name.
type CommandDescriptor struct {
	Name   string
	Module string
	Schema CommandSchema
	Handle CommandHandlerFunc
}

// ModuleDescriptor is the full capability set a module contributes to a
// container's registry: components, systems, and commands.
type ModuleDescriptor struct {
	Name       string
	Components []ComponentDeclaration
	Systems    []SystemDescriptor
	Commands   []CommandDescriptor
}

// ContainerState is a state in the container lifecycle state machine.
type ContainerState string

const (
	ContainerCreated  ContainerState = "CREATED"
	ContainerStarting ContainerState = "STARTING"
	ContainerRunning  ContainerState = "RUNNING"
	ContainerPaused   ContainerState = "PAUSED"
	ContainerStopping ContainerState = "STOPPING"
	ContainerStopped  ContainerState = "STOPPED"
	ContainerErrored  ContainerState = "ERRORED"
)
