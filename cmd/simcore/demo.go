package main

import (
	"github.com/matchforge/simcore/pkg/simerr"
	"github.com/matchforge/simcore/pkg/types"
)

// demoModule is a small, self-contained module used by every subcommand
// that needs something installed to operate against: a position pair
// moved by a single integrate system, and a "spawn" command that places
// an entity the caller has already created at a given position.
func demoModule() types.ModuleDescriptor {
	return types.ModuleDescriptor{
		Name: "demo",
		Components: []types.ComponentDeclaration{
			{Name: "POSITION_X", Permission: types.PermissionWrite},
			{Name: "POSITION_Y", Permission: types.PermissionWrite},
			{Name: "VELOCITY_X", Permission: types.PermissionWrite},
			{Name: "VELOCITY_Y", Permission: types.PermissionWrite},
		},
		Systems: []types.SystemDescriptor{
			{
				Name:   "integrate",
				Module: "demo",
				Run:    integrateSystem,
			},
		},
		Commands: []types.CommandDescriptor{
			{
				Name:   "spawn",
				Module: "demo",
				Schema: types.CommandSchema{
					{Name: "x", Type: types.ParamTypeFloat, Required: false, Default: 0.0},
					{Name: "y", Type: types.ParamTypeFloat, Required: false, Default: 0.0},
				},
				Handle: spawnHandler,
			},
		},
	}
}

func integrateSystem(store types.Store, tick uint64) error {
	posX, ok := store.ComponentID("POSITION_X")
	if !ok {
		return simerr.New(simerr.UnknownComponent, "demo.integrate", nil)
	}
	posY, _ := store.ComponentID("POSITION_Y")
	velX, _ := store.ComponentID("VELOCITY_X")
	velY, _ := store.ComponentID("VELOCITY_Y")

	for _, e := range store.Query(posX, velX) {
		x, _ := store.Get(e, posX)
		vx, _ := store.Get(e, velX)
		if err := store.Set("demo", e, posX, x+vx); err != nil {
			return err
		}
	}
	for _, e := range store.Query(posY, velY) {
		y, _ := store.Get(e, posY)
		vy, _ := store.Get(e, velY)
		if err := store.Set("demo", e, posY, y+vy); err != nil {
			return err
		}
	}
	return nil
}

func spawnHandler(store types.Store, tick uint64, params map[string]any) error {
	// The entity itself is created by the caller (container.Matches()
	// is not reachable from a command handler); this handler only
	// demonstrates writing command params into freshly spawned
	// components, so it expects "entity" to be pre-populated by the
	// caller into params.
	e, ok := params["entity"].(types.EntityId)
	if !ok {
		return simerr.New(simerr.BadCommand, "demo.spawn", nil)
	}
	posX, _ := store.ComponentID("POSITION_X")
	posY, _ := store.ComponentID("POSITION_Y")

	x, _ := toFloat(params["x"])
	y, _ := toFloat(params["y"])
	if err := store.Set("demo", e, posX, x); err != nil {
		return err
	}
	return store.Set("demo", e, posY, y)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
