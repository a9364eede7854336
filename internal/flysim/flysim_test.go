package flysim

import (
	"context"
	"testing"

	"github.com/tiiuae/quickscan/internal/vehicle"
)

func TestSimulator_AdvancesOnlyInAuto(t *testing.T) {
	ctx := context.Background()
	sim := New(vehicle.Position{Lat: 1, Lon: 2})

	cmds := []vehicle.Command{
		{Kind: vehicle.CommandTakeoff, Alt: 10},
		{Kind: vehicle.CommandWaypoint, Lat: 1.1, Lon: 2.1, Alt: 10},
		{Kind: vehicle.CommandWaypoint, Lat: 1.2, Lon: 2.2, Alt: 10},
	}
	sim.ClearCommands(ctx)
	for _, c := range cmds {
		sim.AddCommand(ctx, c)
	}
	sim.UploadCommands(ctx)

	if n, _ := sim.CommandCount(ctx); n != 3 {
		t.Fatalf("expected 3 commands, got %d", n)
	}
	if idx, _ := sim.CurrentCommandIndex(ctx); idx != 0 {
		t.Fatalf("expected index 0 on the ground, got %d", idx)
	}

	sim.Takeoff(ctx, 10)
	sim.SetFlightMode(ctx, vehicle.ModeAuto)

	if idx, _ := sim.CurrentCommandIndex(ctx); idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
	if idx, _ := sim.CurrentCommandIndex(ctx); idx != 2 {
		t.Fatalf("expected index 2, got %d", idx)
	}
	pos, _ := sim.CurrentPosition(ctx)
	if pos.Lat != 1.1 || pos.Lon != 2.1 || pos.Alt != 10 {
		t.Errorf("unexpected position %+v", pos)
	}

	sim.SetFlightMode(ctx, vehicle.ModeLoiter)
	if idx, _ := sim.CurrentCommandIndex(ctx); idx != 2 {
		t.Fatalf("expected the simulator to hold in LOITER, got %d", idx)
	}

	sim.SetFlightMode(ctx, vehicle.ModeAuto)
	sim.CurrentCommandIndex(ctx)
	if idx, _ := sim.CurrentCommandIndex(ctx); idx != 3 {
		t.Fatalf("index must stop at the command count, got %d", idx)
	}

	sim.Land(ctx)
	stats := sim.Stats()
	if stats.Takeoffs != 1 || stats.Lands != 1 || stats.Uploads != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if sim.Mode() != vehicle.ModeLand {
		t.Errorf("expected LAND, got %s", sim.Mode())
	}
}

func TestSimulator_RejectsGroundTakeoff(t *testing.T) {
	sim := New(vehicle.Position{})
	if err := sim.Takeoff(context.Background(), 0); err == nil {
		t.Fatalf("expected an error for a zero altitude takeoff")
	}
}
