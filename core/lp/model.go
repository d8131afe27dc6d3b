package lp

import (
	"fmt"
	"math"
)

// VarID indexes a variable inside its Model.
type VarID int

// Variable is a continuous decision variable with bounds. Upper may be +Inf.
type Variable struct {
	Name  string
	Lower float64
	Upper float64
}

// Fixed reports whether the bounds leave a single feasible value.
func (v Variable) Fixed() bool { return v.Lower == v.Upper }

// Term is one coefficient/variable product of a linear expression.
type Term struct {
	Var  VarID
	Coef float64
}

// Expr is a linear expression Σ coef·x + Constant.
type Expr struct {
	Terms    []Term
	Constant float64
}

// Add appends coef·v to the expression.
func (e *Expr) Add(v VarID, coef float64) {
	if coef == 0 {
		return
	}
	e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
}

// Eval evaluates the expression for the assignment x.
func (e Expr) Eval(x []float64) float64 {
	s := e.Constant
	for _, t := range e.Terms {
		s += t.Coef * x[t.Var]
	}
	return s
}

// Sense is the relation of a constraint.
type Sense int

const (
	LessEq Sense = iota
	Equal
	GreaterEq
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case Equal:
		return "=="
	case GreaterEq:
		return ">="
	default:
		return "?"
	}
}

// Constraint is Σ coef·x (sense) RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Satisfied checks the constraint for x within tol.
func (c Constraint) Satisfied(x []float64, tol float64) bool {
	lhs := Expr{Terms: c.Terms}.Eval(x)
	switch c.Sense {
	case LessEq:
		return lhs <= c.RHS+tol
	case GreaterEq:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}

// Model is a minimisation LP. Once handed to a Solver it must not change.
type Model struct {
	Name        string
	variables   []Variable
	constraints []Constraint
	objective   Expr
}

// NewModel returns an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name}
}

// AddVariable declares a variable with bounds [lower, upper].
func (m *Model) AddVariable(name string, lower, upper float64) VarID {
	m.variables = append(m.variables, Variable{Name: name, Lower: lower, Upper: upper})
	return VarID(len(m.variables) - 1)
}

// AddConstraint appends a constraint.
func (m *Model) AddConstraint(c Constraint) {
	m.constraints = append(m.constraints, c)
}

// AddConstraints appends constraints in order.
func (m *Model) AddConstraints(cs []Constraint) {
	m.constraints = append(m.constraints, cs...)
}

// SetObjective sets the expression to minimise.
func (m *Model) SetObjective(e Expr) { m.objective = e }

// Objective returns the expression to minimise.
func (m *Model) Objective() Expr { return m.objective }

// Variables returns the declared variables indexed by VarID.
func (m *Model) Variables() []Variable { return m.variables }

// Variable returns the variable with the given id.
func (m *Model) Variable(id VarID) Variable { return m.variables[id] }

// Constraints returns the constraints in insertion order.
func (m *Model) Constraints() []Constraint { return m.constraints }

// NumVariables returns the number of declared variables.
func (m *Model) NumVariables() int { return len(m.variables) }

// NumConstraints returns the number of constraints.
func (m *Model) NumConstraints() int { return len(m.constraints) }

// Check verifies bounds and constraints for x and returns the first violation.
func (m *Model) Check(x []float64, tol float64) error {
	if len(x) != len(m.variables) {
		return fmt.Errorf("assignment has %d values for %d variables", len(x), len(m.variables))
	}
	for i, v := range m.variables {
		if x[i] < v.Lower-tol || x[i] > v.Upper+tol {
			return fmt.Errorf("variable %s=%g outside [%g, %g]", v.Name, x[i], v.Lower, v.Upper)
		}
	}
	for _, c := range m.constraints {
		if !c.Satisfied(x, tol) {
			return fmt.Errorf("constraint %s violated", c.Name)
		}
	}
	return nil
}
