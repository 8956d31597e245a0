package common

import "github.com/nspcc-dev/neo-go/pkg/interop/runtime"

var (
	// ErrTriggerWitnessFailed appears when the method must be
	// called by the designated settlement trigger but was not.
	ErrTriggerWitnessFailed = "trigger witness check failed"
	// ErrOwnerWitnessFailed appears when the method must be called
	// by an owner of some assets but was not.
	ErrOwnerWitnessFailed = "owner witness check failed"
	// ErrWitnessFailed appears when the method must be called
	// using certain account but was not.
	ErrWitnessFailed = "witness check failed"
)

// CheckTriggerWitness checks witness of the passed caller.
// It panics with ErrTriggerWitnessFailed message on fail.
func CheckTriggerWitness(caller []byte) {
	checkWitnessWithPanic(caller, ErrTriggerWitnessFailed)
}

// CheckOwnerWitness checks witness of the passed caller.
// It panics with ErrOwnerWitnessFailed message on fail.
func CheckOwnerWitness(caller []byte) {
	checkWitnessWithPanic(caller, ErrOwnerWitnessFailed)
}

// CheckWitness checks witness of the passed caller.
// It panics with ErrWitnessFailed message on fail.
func CheckWitness(caller []byte) {
	checkWitnessWithPanic(caller, ErrWitnessFailed)
}

func checkWitnessWithPanic(caller []byte, panicMsg string) {
	if !runtime.CheckWitness(caller) {
		panic(panicMsg)
	}
}
