package model

import "fmt"

// OperatingMode is the derived classification of the current energy flow.
type OperatingMode string

func (om OperatingMode) String() string {
	return string(om)
}

const (
	BypassGrid              OperatingMode = "BypassGrid"
	BatteryDischarge        OperatingMode = "BatteryDischarge"
	PVSurplusCharging       OperatingMode = "PVSurplusCharging"
	PVSupplyingNearBalanced OperatingMode = "PVSupplyingNearBalanced"
	IdleOrUnknown           OperatingMode = "IdleOrUnknown"
)

var OperatingModes = []OperatingMode{
	BypassGrid,
	BatteryDischarge,
	PVSurplusCharging,
	PVSupplyingNearBalanced,
	IdleOrUnknown,
}

// work mode register (201) as observed on the device:
// 3 while mains is 0 and battery negative, 2 while mains > 0 and battery positive.
var workModeNames = map[int]string{
	0: "Standby",
	1: "Line/AC",
	2: "Bypass/Grid Supply",
	3: "Inverter Supply",
	4: "Fault",
	5: "Shutdown",
	6: "Bypass (alt)",
}

// WorkModeText names a raw work mode value.
func WorkModeText(mode int) string {
	if name, ok := workModeNames[mode]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", mode)
}

const StatusFlagFault = "Fault"

// StatusBitNames maps bits of the auxiliary status word to names.
// The mapping is a best guess; the raw word is always published as well.
var StatusBitNames = map[int]string{
	0:  "Inverter On",
	1:  "Output Active",
	2:  "Charging",
	3:  "Discharging",
	4:  "Grid Present",
	5:  "PV Present",
	6:  "Battery Low",
	7:  "Battery Full",
	8:  StatusFlagFault,
	9:  "Line Mode",
	10: "Bypass Mode",
	11: "Overload",
	12: "Over Temp",
}
