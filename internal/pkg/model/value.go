package model

import (
	"strconv"
	"time"
)

type ValueKind string

const (
	KindNumber ValueKind = "number"
	KindBool   ValueKind = "bool"
	KindText   ValueKind = "text"
)

// Value is a published sensor state. Exactly one of the payload fields is
// meaningful, selected by Kind.
type Value struct {
	Kind   ValueKind `json:"kind"`
	Number float64   `json:"number,omitempty"`
	Bool   bool      `json:"bool,omitempty"`
	Text   string    `json:"text,omitempty"`
}

func Number(v float64) Value {
	return Value{Kind: KindNumber, Number: v}
}

func Int(v int) Value {
	return Number(float64(v))
}

func Bool(v bool) Value {
	return Value{Kind: KindBool, Bool: v}
}

func Text(v string) Value {
	return Value{Kind: KindText, Text: v}
}

const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"
)

// String renders the value as a sensor state payload.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBool:
		if v.Bool {
			return PayloadOn
		}
		return PayloadOff
	default:
		return v.Text
	}
}

type Component string

const (
	ComponentSensor       Component = "sensor"
	ComponentBinarySensor Component = "binary_sensor"
)

func (c Component) String() string {
	return string(c)
}

// Sensor is the discovery metadata of one published entity.
type Sensor struct {
	UniqueID    string
	Component   Component
	Name        string
	Unit        string
	DeviceClass string
	StateClass  string
	Icon        string
}

// Reading pairs a sensor with its value for the current cycle.
type Reading struct {
	Sensor    Sensor
	Value     Value
	Timestamp time.Time
}
