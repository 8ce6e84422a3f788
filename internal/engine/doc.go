// Package engine contains the simulation model and the loop that drives it.
//
// A Model builds the walled grid, splits its interior into one vertical zone
// per cleaning agent, seeds stations, dirt and extra obstacles, then steps
// every agent once per tick in shuffled order until the floor is clean or
// the step budget runs out.
//
// ARCHITECTURAL RULE: the grid is only mutated inside Model.Step. Server
// code goes through Engine, which serializes steps and snapshots.
package engine
