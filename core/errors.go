package core

// These errors are mostly catalog-author errors, not internal errors.
// Validators report them statically, and evaluation reports the
// expression ones as engine faults.

import (
	"fmt"
	"strconv"
	"strings"
)

// BadName occurs when a behavior's name is missing or doesn't start
// with its catalog namespace prefix.
type BadName struct {
	Name   string
	Reason string
}

func (e *BadName) Error() string {
	if e.Name == "" {
		return "behavior name " + e.Reason
	}
	return `behavior name "` + e.Name + `" ` + e.Reason
}

// BadCategory occurs when a behavior's category isn't one of the
// known categories.
type BadCategory struct {
	Behavior string
	Category string
}

func (e *BadCategory) Error() string {
	if e.Category == "" {
		return `behavior "` + e.Behavior + `" has no category`
	}
	return `behavior "` + e.Behavior + `" has unknown category "` + e.Category +
		`" (want one of ` + strings.Join(Categories, ", ") + `)`
}

// NoStates occurs when a behavior has a state machine with no states.
type NoStates struct {
	Behavior string
}

func (e *NoStates) Error() string {
	return `behavior "` + e.Behavior + `" has a state machine with no states`
}

// BadInitial occurs when a state machine's initial state is missing,
// ambiguous, or not a declared state.
type BadInitial struct {
	Behavior string
	Initial  string
	Reason   string
}

func (e *BadInitial) Error() string {
	if e.Initial == "" {
		return `behavior "` + e.Behavior + `" initial state ` + e.Reason
	}
	return `behavior "` + e.Behavior + `" initial state "` + e.Initial + `" ` + e.Reason
}

// DupState occurs when a state name is declared more than once.
type DupState struct {
	Behavior string
	State    string
}

func (e *DupState) Error() string {
	return `behavior "` + e.Behavior + `" declares state "` + e.State + `" more than once`
}

// DupEntity occurs when an entity name is declared more than once.
type DupEntity struct {
	Behavior string
	Entity   string
}

func (e *DupEntity) Error() string {
	return `behavior "` + e.Behavior + `" declares entity "` + e.Entity + `" more than once`
}

// DupEvent occurs when an event key is declared more than once.
type DupEvent struct {
	Behavior string
	Event    string
}

func (e *DupEvent) Error() string {
	return `behavior "` + e.Behavior + `" declares event "` + e.Event + `" more than once`
}

// UndeclaredEvent occurs when a transition consumes an event that the
// machine doesn't declare.
type UndeclaredEvent struct {
	Behavior   string
	Event      string
	Transition int
}

func (e *UndeclaredEvent) Error() string {
	return `behavior "` + e.Behavior + `" transition ` + strconv.Itoa(e.Transition) +
		` consumes undeclared event "` + e.Event + `"`
}

// UndeclaredState occurs when a transition leaves from or arrives at
// a state that the machine doesn't declare.  Role is "from" or "to".
type UndeclaredState struct {
	Behavior   string
	State      string
	Role       string
	Transition int
}

func (e *UndeclaredState) Error() string {
	return `behavior "` + e.Behavior + `" transition ` + strconv.Itoa(e.Transition) +
		` ` + e.Role + ` undeclared state "` + e.State + `"`
}

// ImpureGuard occurs when a guard expression calls an effect
// operator.  Guards must be pure.
type ImpureGuard struct {
	Behavior string
	Op       string
	Where    string
}

func (e *ImpureGuard) Error() string {
	return `behavior "` + e.Behavior + `" guard at ` + e.Where +
		` calls effect operator "` + e.Op + `"`
}

// MissingConfig occurs when activation config omits a required field
// that has no default.
type MissingConfig struct {
	Behavior string
	Field    string
}

func (e *MissingConfig) Error() string {
	return `behavior "` + e.Behavior + `" config requires "` + e.Field + `"`
}

// BadConfig occurs when an activation config value has the wrong type
// or isn't one of the field's enumerated values.
type BadConfig struct {
	Behavior string
	Field    string
	Want     string
	Got      interface{}
}

func (e *BadConfig) Error() string {
	return fmt.Sprintf(`behavior %q config field %q wants %s; got %#v`,
		e.Behavior, e.Field, e.Want, e.Got)
}

// UnknownConfig occurs when activation config includes a field that
// the behavior's config schema doesn't declare.
type UnknownConfig struct {
	Behavior string
	Field    string
}

func (e *UnknownConfig) Error() string {
	return `behavior "` + e.Behavior + `" config schema has no field "` + e.Field + `"`
}

// UnknownOp is an engine fault: an expression called an operator that
// isn't registered.
type UnknownOp struct {
	Op string
}

func (e *UnknownOp) Error() string {
	return `unknown operator "` + e.Op + `"`
}

// BadArity is an engine fault: an operator was called with the wrong
// number of arguments.
type BadArity struct {
	Op, Want string
	Got      int
}

func (e *BadArity) Error() string {
	return fmt.Sprintf(`operator %q wants %s arguments; got %d`, e.Op, e.Want, e.Got)
}

// EffectInGuard is an engine fault: a guard evaluation reached an
// effect operator.  ValidateGuards catches this statically, but the
// evaluator also refuses at runtime.
type EffectInGuard struct {
	Op string
}

func (e *EffectInGuard) Error() string {
	return `effect operator "` + e.Op + `" called in a guard`
}

// BadOperand is an engine fault: an operator got an argument outside
// its documented coercions.
type BadOperand struct {
	Op  string
	Arg interface{}
}

func (e *BadOperand) Error() string {
	return fmt.Sprintf(`operator %q can't use operand %#v`, e.Op, e.Arg)
}

// NoStore is an engine fault: a persistence operator ran with no
// entity store attached to the runtime.
type NoStore struct {
	Op string
}

func (e *NoStore) Error() string {
	return `operator "` + e.Op + `" needs an entity store`
}

// NoSink is an engine fault: an effect operator ran with no suitable
// sink attached to the runtime.
type NoSink struct {
	Op   string
	Sink string
}

func (e *NoSink) Error() string {
	return `operator "` + e.Op + `" needs the ` + e.Sink + ` sink`
}
