// Package classifier derives the operating mode and automation flags from a
// decoded snapshot. It is stateless: every call looks at one snapshot only.
package classifier

import (
	"github.com/anicoll/vevor-integration/internal/pkg/bits"
	"github.com/anicoll/vevor-integration/internal/pkg/model"
)

// Thresholds are the dead bands around zero, in watts, that absorb sensor
// noise near idle.
type Thresholds struct {
	MainsW   int
	BatteryW int
	PVW      int
	OutputW  int
}

var DefaultThresholds = Thresholds{
	MainsW:   50,
	BatteryW: 30,
	PVW:      30,
	OutputW:  30,
}

// flow status bit seen toggling between 0x0251 and 0x0255
const flowToggleBit = 2

// Flags are the derived booleans published for automations.
type Flags struct {
	GridImporting      bool `json:"grid_importing"`
	BatteryDischarging bool `json:"battery_discharging"`
	BatteryCharging    bool `json:"battery_charging"`
	PVPresent          bool `json:"pv_present"`
	FaultActive        bool `json:"fault_active"`
	FlowBit2           bool `json:"flow_bit2"`
}

// Classify uses DefaultThresholds.
func Classify(mainsPower, batteryPower, pvPower, outputPower int) model.OperatingMode {
	return DefaultThresholds.Classify(mainsPower, batteryPower, pvPower, outputPower)
}

// Classify applies the rules in order; the first match wins.
// Negative battery power is the battery supplying the load.
func (t Thresholds) Classify(mainsPower, batteryPower, pvPower, outputPower int) model.OperatingMode {
	switch {
	case mainsPower > t.MainsW:
		return model.BypassGrid
	case batteryPower < -t.BatteryW:
		return model.BatteryDischarge
	case batteryPower > t.BatteryW:
		return model.PVSurplusCharging
	case pvPower > t.PVW && outputPower > t.OutputW:
		return model.PVSupplyingNearBalanced
	default:
		return model.IdleOrUnknown
	}
}

// Mode classifies a snapshot.
func (t Thresholds) Mode(s model.Snapshot) model.OperatingMode {
	return t.Classify(s.MainsPower, s.BatteryPower, s.PVPower, s.OutputPower)
}

// Flags derives the automation booleans of a snapshot.
func (t Thresholds) Flags(s model.Snapshot) Flags {
	return Flags{
		GridImporting:      s.MainsPower > t.MainsW,
		BatteryDischarging: s.BatteryPower < -t.BatteryW,
		BatteryCharging:    s.BatteryPower > t.BatteryW,
		PVPresent:          s.PVPower > t.PVW,
		FaultActive:        s.FaultActive,
		FlowBit2:           bits.IsSet(s.FlowStatus, flowToggleBit),
	}
}
