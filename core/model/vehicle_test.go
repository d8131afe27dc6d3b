package model

import (
	"errors"
	"testing"
)

func testGrid(t *testing.T, n int) TimeGrid {
	t.Helper()
	g, err := NewTimeGrid(n, 0.5)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	return g
}

func TestActiveSlots(t *testing.T) {
	g := testGrid(t, 10)
	ev := EVProfile{Name: "ev1", Arrival: 3, Departure: 6}
	got := ev.ActiveSlots(g)
	want := []int{3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("expected %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v got %v", want, got)
		}
	}
	if ev.IsActive(2) || !ev.IsActive(3) || !ev.IsActive(6) || ev.IsActive(7) {
		t.Fatalf("window bounds not inclusive")
	}
}

func TestActiveSlotsSingle(t *testing.T) {
	g := testGrid(t, 4)
	ev := EVProfile{Name: "ev1", Arrival: 2, Departure: 2}
	if got := ev.ActiveSlots(g); len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected [2] got %v", got)
	}
	if ev.WindowHours(g.IntervalHours) != 0 {
		t.Fatalf("expected empty window")
	}
}

func TestEVProfileValidate(t *testing.T) {
	g := testGrid(t, 8)
	base := EVProfile{Name: "ev1", Arrival: 1, Departure: 8, ArrivalEnergy: 10, DesiredEnergy: 20, MaxChargingPower: 11, MaxDischargingPower: 4, BatteryCapacity: 50}
	if err := base.Validate(g); err != nil {
		t.Fatalf("valid profile rejected: %v", err)
	}

	cases := map[string]struct {
		mutate func(*EVProfile)
		field  string
	}{
		"empty name":        {func(e *EVProfile) { e.Name = "" }, "name"},
		"arrival after dep": {func(e *EVProfile) { e.Arrival = 5; e.Departure = 4 }, "arrival"},
		"departure outside": {func(e *EVProfile) { e.Departure = 9 }, "departure"},
		"arrival outside":   {func(e *EVProfile) { e.Arrival = 0 }, "arrival"},
		"zero capacity":     {func(e *EVProfile) { e.BatteryCapacity = 0 }, "battery_capacity"},
		"desired too high":  {func(e *EVProfile) { e.DesiredEnergy = 51 }, "desired_energy"},
		"arrival too high":  {func(e *EVProfile) { e.ArrivalEnergy = 60 }, "arrival_energy"},
		"negative power":    {func(e *EVProfile) { e.MaxChargingPower = -1 }, "max_charging_power"},
		"negative energy":   {func(e *EVProfile) { e.ArrivalEnergy = -1 }, "arrival_energy"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ev := base
			tc.mutate(&ev)
			err := ev.Validate(g)
			if !errors.Is(err, ErrConstruction) {
				t.Fatalf("expected construction error, got %v", err)
			}
			var ce *ConstructionError
			if !errors.As(err, &ce) || ce.Field != tc.field {
				t.Fatalf("expected field %s, got %v", tc.field, err)
			}
		})
	}
}

func TestFleetDefaults(t *testing.T) {
	var f FleetDefaults
	f.SetDefaults()
	if f != DefaultFleet() {
		t.Fatalf("expected defaults, got %+v", f)
	}
	f = FleetDefaults{BatteryCapacity: 60}
	f.SetDefaults()
	if f.MaxChargingPower != 11 || f.MaxDischargingPower != 0 || f.BatteryCapacity != 60 {
		t.Fatalf("unexpected defaults %+v", f)
	}
	ev := DefaultFleet().Profile("a", 1, 4, 5, 10)
	if ev.MaxChargingPower != 11 || ev.MaxDischargingPower != 4 || ev.BatteryCapacity != 50 {
		t.Fatalf("limits not applied: %+v", ev)
	}
}

func TestFleetFill(t *testing.T) {
	f := DefaultFleet()
	ev := f.Fill(EVProfile{Name: "a", Arrival: 1, Departure: 3})
	if ev.MaxChargingPower != 11 || ev.MaxDischargingPower != 4 || ev.BatteryCapacity != 50 {
		t.Fatalf("fleet limits not applied: %+v", ev)
	}
	ev = f.Fill(EVProfile{Name: "b", MaxChargingPower: 7})
	if ev.MaxChargingPower != 7 || ev.MaxDischargingPower != 0 || ev.BatteryCapacity != 50 {
		t.Fatalf("explicit limits overwritten: %+v", ev)
	}
}
