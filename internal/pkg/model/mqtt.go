package model

type RegisterDevice struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
}

// RegisterMessage is the Home Assistant discovery payload for one entity.
type RegisterMessage struct {
	Name              string         `json:"name"`
	ID                string         `json:"unique_id"`
	StateTopic        string         `json:"state_topic"`
	Device            RegisterDevice `json:"device"`
	UnitOfMeasurement string         `json:"unit_of_measurement,omitempty"`
	DeviceClass       string         `json:"device_class,omitempty"`
	StateClass        string         `json:"state_class,omitempty"`
	Icon              string         `json:"icon,omitempty"`
	PayloadOn         string         `json:"payload_on,omitempty"`
	PayloadOff        string         `json:"payload_off,omitempty"`
}

// Device identifies the inverter in every discovery message.
type Device struct {
	ID           string
	Name         string
	Model        string
	Manufacturer string
}

var DefaultDevice = Device{
	ID:           "vevor_inverter",
	Name:         "Vevor Inverter",
	Model:        "3500W Inverter",
	Manufacturer: "Vevor",
}
