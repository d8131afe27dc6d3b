// Package planner builds the fleet charging linear program, hands it to an
// lp.Solver and turns the optimum into a per-vehicle schedule.
//
// The model has three variables per vehicle and active slot: charging power,
// discharging power and the stored energy at the end of the slot. Energy is
// tied to power by the recurrence
//
//	energy[t] = energy[t-1] + (charge[t] - discharge[t]) * interval_hours
//
// starting from the arrival energy. A shared per-slot grid cap couples the
// vehicles; everything else is separable.
package planner
