package model

import "time"

// Snapshot is the decoded telemetry of one poll cycle.
// It is built once by the decoder and never modified afterwards.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	WorkMode     int    `json:"work_mode"`
	WorkModeText string `json:"work_mode_text"`

	MainsVoltage   float64 `json:"mains_voltage"`
	MainsFrequency float64 `json:"mains_frequency"`
	MainsPower     int     `json:"mains_power"`

	OutputVoltage   float64 `json:"output_voltage"`
	OutputCurrent   float64 `json:"output_current"`
	OutputFrequency float64 `json:"output_frequency"`
	OutputPower     int     `json:"output_power"`

	BatteryChargeCurrent float64 `json:"battery_charge_current"`
	BatteryVoltage       float64 `json:"battery_voltage"`
	BatteryCurrent       float64 `json:"battery_current"`
	BatteryPower         int     `json:"battery_power"`
	StateOfCharge        int     `json:"state_of_charge"`

	PVVoltage float64 `json:"pv_voltage"`
	PVCurrent float64 `json:"pv_current"`
	// PVPower is the PV average power with firmware spikes forced to zero.
	PVPower              int `json:"pv_power"`
	PVAveragePower       int `json:"pv_average_power"`
	PVAverageChargePower int `json:"pv_average_charge_power"`

	LoadPercent  int `json:"load_percent"`
	ChargerTemp  int `json:"charger_temp"`
	InverterTemp int `json:"inverter_temp"`
	MPPTTemp     int `json:"mppt_temp"`

	BatteryAverageCurrent  float64 `json:"battery_average_current"`
	InverterAverageCurrent float64 `json:"inverter_average_current"`
	PVAverageCurrent       float64 `json:"pv_average_current"`

	FlowStatus uint16 `json:"flow_status"`

	// Set only when the auxiliary block was read.
	StatusWord  *uint16  `json:"status_word,omitempty"`
	WarningWord *uint16  `json:"warning_word,omitempty"`
	FaultWord   *uint16  `json:"fault_word,omitempty"`
	StatusFlags []string `json:"status_flags,omitempty"`

	FaultActive bool `json:"fault_active"`
}

// HasAuxiliary reports whether the status, warning and fault words were decoded.
func (s Snapshot) HasAuxiliary() bool {
	return s.StatusWord != nil
}
