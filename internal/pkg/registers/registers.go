// Package registers holds the register map used to decode the inverter's
// holding register blocks. The map is data: the default is embedded and a
// replacement can be loaded from a YAML file at startup.
package registers

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/anicoll/vevor-integration/internal/pkg/codec"
)

//go:embed registers.yaml
var defaultMap []byte

var ErrInvalidMap = errors.New("invalid register map")

// Field names shared by the register map and the decoder.
const (
	WorkMode               = "work_mode"
	MainsVoltage           = "mains_voltage"
	MainsFrequency         = "mains_frequency"
	MainsPower             = "mains_power"
	OutputVoltage          = "output_voltage"
	OutputCurrent          = "output_current"
	OutputFrequency        = "output_frequency"
	OutputPower            = "output_power"
	BatteryChargeCurrent   = "battery_charge_current"
	BatteryVoltage         = "battery_voltage"
	BatteryCurrent         = "battery_current"
	BatteryPower           = "battery_power"
	PVVoltage              = "pv_voltage"
	PVCurrent              = "pv_current"
	PVAveragePower         = "pv_average_power"
	PVAverageChargePower   = "pv_average_charge_power"
	LoadPercent            = "load_percent"
	ChargerTemp            = "charger_temp"
	InverterTemp           = "inverter_temp"
	MPPTTemp               = "mppt_temp"
	StateOfCharge          = "state_of_charge"
	FlowStatus             = "flow_status"
	BatteryAverageCurrent  = "battery_average_current"
	InverterAverageCurrent = "inverter_average_current"
	PVAverageCurrent       = "pv_average_current"

	StatusWord  = "status_word"
	WarningWord = "warning_word"
	FaultWord   = "fault_word"
)

// Field describes one register: where it lives and how to read it.
type Field struct {
	Name    string  `yaml:"name"`
	Address uint16  `yaml:"address"`
	Scale   float64 `yaml:"scale"`
	Signed  bool    `yaml:"signed"`
}

// Int applies the field's signedness to a raw word.
func (f Field) Int(w uint16) int {
	if f.Signed {
		return codec.AsSigned16(w)
	}
	return codec.AsUnsigned16(w)
}

// Float applies signedness and then the scale divisor.
func (f Field) Float(w uint16) float64 {
	return codec.Scaled(f.Int(w), f.Scale)
}

// Table is the layout of one contiguous block read from Base.
type Table struct {
	Base      uint16  `yaml:"base"`
	MinLength int     `yaml:"min_length"`
	Fields    []Field `yaml:"fields"`

	index map[string]Field
}

// Map is the full register map of the device.
type Map struct {
	Primary   Table `yaml:"primary"`
	Auxiliary Table `yaml:"auxiliary"`
}

// Default returns the embedded register map.
func Default() (Map, error) {
	return Parse(defaultMap)
}

// Load reads a register map from a YAML file.
func Load(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Map{}, fmt.Errorf("read register map: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML register map. Unknown keys are
// rejected so a misspelled option cannot silently change decoding.
func Parse(data []byte) (Map, error) {
	var m Map
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return Map{}, fmt.Errorf("%w: %w", ErrInvalidMap, err)
	}
	if err := m.Primary.Validate(); err != nil {
		return Map{}, fmt.Errorf("primary: %w", err)
	}
	if err := m.Auxiliary.Validate(); err != nil {
		return Map{}, fmt.Errorf("auxiliary: %w", err)
	}
	return m, nil
}

// Validate checks the table invariants and builds the name index.
func (t *Table) Validate() error {
	if len(t.Fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidMap)
	}
	byName := make(map[string]Field, len(t.Fields))
	byAddress := make(map[uint16]string, len(t.Fields))
	for _, f := range t.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field at address %d has no name", ErrInvalidMap, f.Address)
		}
		if f.Scale <= 0 {
			return fmt.Errorf("%w: field %q scale must be > 0, got %v", ErrInvalidMap, f.Name, f.Scale)
		}
		if f.Address < t.Base {
			return fmt.Errorf("%w: field %q address %d below base %d", ErrInvalidMap, f.Name, f.Address, t.Base)
		}
		if _, exists := byName[f.Name]; exists {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidMap, f.Name)
		}
		if prev, exists := byAddress[f.Address]; exists {
			return fmt.Errorf("%w: address %d used by %q and %q", ErrInvalidMap, f.Address, prev, f.Name)
		}
		byName[f.Name] = f
		byAddress[f.Address] = f.Name
	}
	t.index = byName
	return nil
}

// Require returns an error naming the first field missing from the table.
func (t Table) Require(names ...string) error {
	for _, name := range names {
		if _, ok := t.Lookup(name); !ok {
			return fmt.Errorf("%w: missing field %q", ErrInvalidMap, name)
		}
	}
	return nil
}

// Lookup returns the field with the given name.
func (t Table) Lookup(name string) (Field, bool) {
	f, ok := t.index[name]
	return f, ok
}

// Required is the number of words a block must hold to decode every field.
func (t Table) Required() int {
	highest := 0
	for _, f := range t.Fields {
		highest = max(highest, int(f.Address-t.Base)+1)
	}
	return max(highest, t.MinLength)
}

// Word returns the raw word of the named field.
// The block must already be known to hold Required() words.
func (t Table) Word(block []uint16, name string) uint16 {
	f := t.index[name]
	return block[f.Address-t.Base]
}

// Int returns the named field with signedness applied.
func (t Table) Int(block []uint16, name string) int {
	return t.index[name].Int(t.Word(block, name))
}

// Float returns the named field with signedness and scale applied.
func (t Table) Float(block []uint16, name string) float64 {
	return t.index[name].Float(t.Word(block, name))
}
