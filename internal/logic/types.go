// Package logic contains the pure policy pieces of the monitor: publish gating,
// warm-up tracking, state-save scheduling, heartbeats and fault decoding.
// This package has NO external dependencies (no I2C, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Phase is the warm-up status of the climate engine.
type Phase uint8

const (
	PhaseOngoing Phase = iota
	PhaseFinished
)

// String returns "Ongoing" or "Finished".
func (p Phase) String() string {
	if p == PhaseFinished {
		return "Finished"
	}
	return "Ongoing"
}

// MarshalText encodes the phase by name so published records read
// {"value":"Finished"} rather than a bare number.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// PhaseFromCounter maps a raw engine status counter onto a Phase:
// zero means the phase is still running, anything else means it is done.
func PhaseFromCounter(raw float32) Phase {
	if raw == 0 {
		return PhaseOngoing
	}
	return PhaseFinished
}

// Advance returns the next phase given the current one and a raw counter.
// Finished is terminal: a later zero counter never reverts it.
func Advance(current Phase, raw float32) Phase {
	if current == PhaseFinished {
		return PhaseFinished
	}
	return PhaseFromCounter(raw)
}

// Fault is a decoded CCS811 error register category.
type Fault string

const (
	FaultHeaterSupply    Fault = "HeaterSupply"
	FaultHeaterFault     Fault = "HeaterFault"
	FaultMaxResistance   Fault = "MaxResistance"
	FaultMeasModeInvalid Fault = "MeasModeInvalid"
	FaultReadRegInvalid  Fault = "ReadRegInvalid"
	FaultMsgInvalid      Fault = "MsgInvalid"
	FaultUnknown         Fault = "Unknown"
	// FaultUnreadable means the error register itself could not be read.
	FaultUnreadable Fault = "Unreadable"
)

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}
