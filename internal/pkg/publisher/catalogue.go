// Package publisher turns snapshots into sensor readings and fans them out to
// the configured sinks.
package publisher

import (
	"strings"

	"github.com/gosimple/slug"

	"github.com/anicoll/vevor-integration/internal/pkg/bits"
	"github.com/anicoll/vevor-integration/internal/pkg/classifier"
	"github.com/anicoll/vevor-integration/internal/pkg/model"
)

const (
	idPrefix               = "vevor_"
	stateClassMeasurement  = "measurement"
	deviceClassVoltage     = "voltage"
	deviceClassCurrent     = "current"
	deviceClassFrequency   = "frequency"
	deviceClassPower       = "power"
	deviceClassBattery     = "battery"
	deviceClassTemperature = "temperature"
	deviceClassProblem     = "problem"
)

// UniqueID derives a stable sensor id from its display name.
func UniqueID(name string) string {
	return idPrefix + strings.ReplaceAll(slug.Make(name), "-", "_")
}

func measurement(name, unit, deviceClass, icon string) model.Sensor {
	return model.Sensor{
		UniqueID:    UniqueID(name),
		Component:   model.ComponentSensor,
		Name:        name,
		Unit:        unit,
		DeviceClass: deviceClass,
		StateClass:  stateClassMeasurement,
		Icon:        icon,
	}
}

func text(name, icon string) model.Sensor {
	return model.Sensor{
		UniqueID:  UniqueID(name),
		Component: model.ComponentSensor,
		Name:      name,
		Icon:      icon,
	}
}

func binary(name, deviceClass, icon string) model.Sensor {
	return model.Sensor{
		UniqueID:    UniqueID(name),
		Component:   model.ComponentBinarySensor,
		Name:        name,
		DeviceClass: deviceClass,
		Icon:        icon,
	}
}

func withID(s model.Sensor, uniqueID string) model.Sensor {
	s.UniqueID = uniqueID
	return s
}

var (
	WorkModeRaw   = measurement("Work Mode (raw)", "", "", "mdi:numeric")
	WorkMode      = text("Work Mode", "mdi:menu")
	OperationMode = text("Operation Mode (derived)", "mdi:state-machine")

	MainsVoltage   = measurement("Mains Voltage", "V", deviceClassVoltage, "")
	MainsFrequency = measurement("Mains Frequency", "Hz", deviceClassFrequency, "")
	MainsPower     = measurement("Mains Power", "W", deviceClassPower, "")

	OutputVoltage   = measurement("AC Output Voltage", "V", deviceClassVoltage, "")
	OutputCurrent   = measurement("AC Output Current", "A", deviceClassCurrent, "")
	OutputFrequency = measurement("AC Output Frequency", "Hz", deviceClassFrequency, "")
	OutputPower     = measurement("AC Output Power", "W", deviceClassPower, "")

	BatteryVoltage       = measurement("Battery Voltage", "V", deviceClassVoltage, "")
	BatteryCurrent       = measurement("Battery Current", "A", deviceClassCurrent, "")
	BatteryPower         = measurement("Battery Power", "W", deviceClassPower, "")
	BatterySOC           = measurement("Battery SOC", "%", deviceClassBattery, "")
	BatteryChargeCurrent = withID(measurement("Battery Charge Current (reg214)", "A", deviceClassCurrent, "mdi:battery-charging"), idPrefix+"battery_charge_current")

	PVVoltage            = measurement("PV Voltage", "V", deviceClassVoltage, "")
	PVCurrent            = measurement("PV Current", "A", deviceClassCurrent, "")
	PVPower              = measurement("PV Power", "W", deviceClassPower, "")
	PVAveragePower       = measurement("PV Avg Power", "W", deviceClassPower, "")
	PVAverageChargePower = measurement("PV Avg Charge Power", "W", deviceClassPower, "")

	LoadPercent  = measurement("Load Percent", "%", "", "mdi:gauge")
	ChargerTemp  = measurement("Charger Temp", "°C", deviceClassTemperature, "")
	InverterTemp = measurement("Inverter Temp", "°C", deviceClassTemperature, "")
	MPPTTemp     = measurement("MPPT Temp", "°C", deviceClassTemperature, "")

	BatteryAverageCurrent  = measurement("Battery Avg Current", "A", deviceClassCurrent, "mdi:current-dc")
	InverterAverageCurrent = measurement("Inverter Avg Current", "A", deviceClassCurrent, "mdi:current-ac")
	PVAverageCurrent       = measurement("PV Avg Current", "A", deviceClassCurrent, "mdi:solar-power")

	FlowStatusRaw = measurement("Flow Status (raw)", "", "", "mdi:transit-connection-variant")
	FlowBits      = text("Flow Bits", "mdi:format-list-bulleted")
	FlowBit2      = withID(binary("Flow Bit 2 (toggle)", "", "mdi:toggle-switch"), idPrefix+"flow_bit2")

	StatusWordRaw     = measurement("Status Word (raw)", "", "", "mdi:code-braces")
	StatusWordDecoded = text("Status Word (decoded)", "mdi:format-list-bulleted")
	WarnWordRaw       = measurement("Warn Word (raw)", "", "", "mdi:alert-circle-outline")
	FaultWordRaw      = measurement("Fault Word (raw)", "", "", "mdi:alert-octagon-outline")

	GridImporting      = binary("Grid Importing", "", "mdi:transmission-tower")
	BatteryDischarging = binary("Battery Discharging", deviceClassBattery, "mdi:battery-minus")
	BatteryCharging    = binary("Battery Charging", deviceClassBattery, "mdi:battery-plus")
	PVPresent          = binary("PV Present", "", "mdi:white-balance-sunny")
	FaultActive        = binary("Fault Active", deviceClassProblem, "mdi:alert")
)

// Readings lists every value published for one cycle. The auxiliary word
// sensors are only included when the snapshot carries them.
func Readings(s model.Snapshot, mode model.OperatingMode, flags classifier.Flags) []model.Reading {
	at := s.Timestamp
	r := func(sensor model.Sensor, v model.Value) model.Reading {
		return model.Reading{Sensor: sensor, Value: v, Timestamp: at}
	}

	readings := []model.Reading{
		r(WorkModeRaw, model.Int(s.WorkMode)),
		r(WorkMode, model.Text(s.WorkModeText)),
		r(OperationMode, model.Text(mode.String())),

		r(MainsVoltage, model.Number(s.MainsVoltage)),
		r(MainsFrequency, model.Number(s.MainsFrequency)),
		r(MainsPower, model.Int(s.MainsPower)),

		r(OutputVoltage, model.Number(s.OutputVoltage)),
		r(OutputCurrent, model.Number(s.OutputCurrent)),
		r(OutputFrequency, model.Number(s.OutputFrequency)),
		r(OutputPower, model.Int(s.OutputPower)),

		r(BatteryVoltage, model.Number(s.BatteryVoltage)),
		r(BatteryCurrent, model.Number(s.BatteryCurrent)),
		r(BatteryPower, model.Int(s.BatteryPower)),
		r(BatterySOC, model.Int(s.StateOfCharge)),
		r(BatteryChargeCurrent, model.Number(s.BatteryChargeCurrent)),

		r(PVVoltage, model.Number(s.PVVoltage)),
		r(PVCurrent, model.Number(s.PVCurrent)),
		r(PVPower, model.Int(s.PVPower)),
		r(PVAveragePower, model.Int(s.PVAveragePower)),
		r(PVAverageChargePower, model.Int(s.PVAverageChargePower)),

		r(LoadPercent, model.Int(s.LoadPercent)),
		r(ChargerTemp, model.Int(s.ChargerTemp)),
		r(InverterTemp, model.Int(s.InverterTemp)),
		r(MPPTTemp, model.Int(s.MPPTTemp)),

		r(BatteryAverageCurrent, model.Number(s.BatteryAverageCurrent)),
		r(InverterAverageCurrent, model.Number(s.InverterAverageCurrent)),
		r(PVAverageCurrent, model.Number(s.PVAverageCurrent)),

		r(FlowStatusRaw, model.Int(int(s.FlowStatus))),
		r(FlowBits, model.Text(bits.Text(s.FlowStatus))),
		r(FlowBit2, model.Bool(flags.FlowBit2)),
	}

	if s.StatusWord != nil {
		readings = append(readings,
			r(StatusWordRaw, model.Int(int(*s.StatusWord))),
			r(StatusWordDecoded, model.Text(strings.Join(s.StatusFlags, ", "))),
		)
	}
	if s.WarningWord != nil {
		readings = append(readings, r(WarnWordRaw, model.Int(int(*s.WarningWord))))
	}
	if s.FaultWord != nil {
		readings = append(readings, r(FaultWordRaw, model.Int(int(*s.FaultWord))))
	}

	return append(readings,
		r(GridImporting, model.Bool(flags.GridImporting)),
		r(BatteryDischarging, model.Bool(flags.BatteryDischarging)),
		r(BatteryCharging, model.Bool(flags.BatteryCharging)),
		r(PVPresent, model.Bool(flags.PVPresent)),
		r(FaultActive, model.Bool(flags.FaultActive)),
	)
}
