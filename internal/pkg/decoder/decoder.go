// Package decoder turns raw register blocks into telemetry snapshots.
package decoder

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/anicoll/vevor-integration/internal/pkg/bits"
	"github.com/anicoll/vevor-integration/internal/pkg/model"
	"github.com/anicoll/vevor-integration/internal/pkg/registers"
)

var ErrInsufficientData = errors.New("insufficient register data")

const (
	// Some firmwares report this (or higher) for PV power when the reading is invalid.
	pvPowerSentinel = 65500

	DefaultPVPowerCeiling = 10000
)

var primaryFields = []string{
	registers.WorkMode,
	registers.MainsVoltage,
	registers.MainsFrequency,
	registers.MainsPower,
	registers.OutputVoltage,
	registers.OutputCurrent,
	registers.OutputFrequency,
	registers.OutputPower,
	registers.BatteryChargeCurrent,
	registers.BatteryVoltage,
	registers.BatteryCurrent,
	registers.BatteryPower,
	registers.PVVoltage,
	registers.PVCurrent,
	registers.PVAveragePower,
	registers.PVAverageChargePower,
	registers.LoadPercent,
	registers.ChargerTemp,
	registers.InverterTemp,
	registers.MPPTTemp,
	registers.StateOfCharge,
	registers.FlowStatus,
	registers.BatteryAverageCurrent,
	registers.InverterAverageCurrent,
	registers.PVAverageCurrent,
}

var auxiliaryFields = []string{
	registers.StatusWord,
	registers.WarningWord,
	registers.FaultWord,
}

type Decoder struct {
	primary        registers.Table
	auxiliary      registers.Table
	pvPowerCeiling int
	now            func() time.Time
}

type Option func(*Decoder)

// WithPVPowerCeiling sets the PV power above which a reading is treated as a spike.
func WithPVPowerCeiling(watts int) Option {
	return func(d *Decoder) {
		d.pvPowerCeiling = watts
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Decoder) {
		d.now = now
	}
}

// New builds a decoder for the register map. It fails if the map lacks any
// field a snapshot needs.
func New(m registers.Map, opts ...Option) (*Decoder, error) {
	if err := m.Primary.Require(primaryFields...); err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}
	if err := m.Auxiliary.Require(auxiliaryFields...); err != nil {
		return nil, fmt.Errorf("auxiliary: %w", err)
	}
	d := &Decoder{
		primary:        m.Primary,
		auxiliary:      m.Auxiliary,
		pvPowerCeiling: DefaultPVPowerCeiling,
		now:            time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// PrimaryBase is the first register address of the primary block.
func (d *Decoder) PrimaryBase() uint16 {
	return d.primary.Base
}

// AuxiliaryBase is the first register address of the auxiliary block.
func (d *Decoder) AuxiliaryBase() uint16 {
	return d.auxiliary.Base
}

// PrimaryLength is the number of words the primary block must hold.
func (d *Decoder) PrimaryLength() int {
	return d.primary.Required()
}

// AuxiliaryLength is the number of words needed to decode the auxiliary block.
func (d *Decoder) AuxiliaryLength() int {
	return d.auxiliary.Required()
}

// Decode builds a snapshot from the primary block and, when it is long
// enough, the auxiliary block. A nil or short auxiliary block leaves the
// status, warning and fault fields unset.
func (d *Decoder) Decode(primary, auxiliary []uint16) (model.Snapshot, error) {
	if need := d.primary.Required(); len(primary) < need {
		return model.Snapshot{}, fmt.Errorf("%w: primary block has %d words, need %d", ErrInsufficientData, len(primary), need)
	}

	p := d.primary
	workMode := p.Int(primary, registers.WorkMode)
	pvAveragePower := p.Int(primary, registers.PVAveragePower)

	s := model.Snapshot{
		Timestamp:    d.now(),
		WorkMode:     workMode,
		WorkModeText: model.WorkModeText(workMode),

		MainsVoltage:   p.Float(primary, registers.MainsVoltage),
		MainsFrequency: p.Float(primary, registers.MainsFrequency),
		MainsPower:     p.Int(primary, registers.MainsPower),

		OutputVoltage:   p.Float(primary, registers.OutputVoltage),
		OutputCurrent:   p.Float(primary, registers.OutputCurrent),
		OutputFrequency: p.Float(primary, registers.OutputFrequency),
		OutputPower:     p.Int(primary, registers.OutputPower),

		BatteryChargeCurrent: p.Float(primary, registers.BatteryChargeCurrent),
		BatteryVoltage:       p.Float(primary, registers.BatteryVoltage),
		BatteryCurrent:       p.Float(primary, registers.BatteryCurrent),
		BatteryPower:         p.Int(primary, registers.BatteryPower),
		StateOfCharge:        p.Int(primary, registers.StateOfCharge),

		PVVoltage:            p.Float(primary, registers.PVVoltage),
		PVCurrent:            p.Float(primary, registers.PVCurrent),
		PVPower:              d.filterPVPower(pvAveragePower),
		PVAveragePower:       pvAveragePower,
		PVAverageChargePower: p.Int(primary, registers.PVAverageChargePower),

		LoadPercent:  p.Int(primary, registers.LoadPercent),
		ChargerTemp:  p.Int(primary, registers.ChargerTemp),
		InverterTemp: p.Int(primary, registers.InverterTemp),
		MPPTTemp:     p.Int(primary, registers.MPPTTemp),

		BatteryAverageCurrent:  p.Float(primary, registers.BatteryAverageCurrent),
		InverterAverageCurrent: p.Float(primary, registers.InverterAverageCurrent),
		PVAverageCurrent:       p.Float(primary, registers.PVAverageCurrent),

		FlowStatus: p.Word(primary, registers.FlowStatus),
	}

	if auxiliary != nil && len(auxiliary) >= d.auxiliary.Required() {
		status := d.auxiliary.Word(auxiliary, registers.StatusWord)
		warning := d.auxiliary.Word(auxiliary, registers.WarningWord)
		fault := d.auxiliary.Word(auxiliary, registers.FaultWord)
		s.StatusWord = &status
		s.WarningWord = &warning
		s.FaultWord = &fault
		s.StatusFlags = bits.NamesForBits(status, model.StatusBitNames)
	}

	s.FaultActive = faultActive(s)
	return s, nil
}

func (d *Decoder) filterPVPower(raw int) int {
	if raw >= pvPowerSentinel || raw > d.pvPowerCeiling {
		return 0
	}
	return raw
}

// any fault source is authoritative
func faultActive(s model.Snapshot) bool {
	if strings.HasPrefix(strings.ToLower(s.WorkModeText), "fault") {
		return true
	}
	if s.FaultWord != nil && *s.FaultWord != 0 {
		return true
	}
	return slices.Contains(s.StatusFlags, model.StatusFlagFault)
}
