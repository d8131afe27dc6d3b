// Package lp describes linear programs independently of the algorithm that
// solves them. A Model holds bounded continuous variables, a linear objective
// to minimise and linear constraints. Solvers implement the Solver interface
// and report one of four statuses.
package lp
