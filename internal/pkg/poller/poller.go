// Package poller runs the read, decode, classify and publish cycle.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/vevor-integration/internal/pkg/bits"
	"github.com/anicoll/vevor-integration/internal/pkg/classifier"
	"github.com/anicoll/vevor-integration/internal/pkg/contxt"
	"github.com/anicoll/vevor-integration/internal/pkg/decoder"
	"github.com/anicoll/vevor-integration/internal/pkg/model"
	"github.com/anicoll/vevor-integration/internal/pkg/publisher"
)

var ErrCyclePanic = errors.New("poll cycle panicked")

const (
	DefaultInterval       = 10 * time.Second
	DefaultIOTimeout      = 5 * time.Second
	DefaultPrimaryCount   = 60
	DefaultAuxiliaryCount = 40
)

// RegisterSource reads count consecutive holding registers starting at base.
type RegisterSource interface {
	ReadBlock(ctx context.Context, base, count uint16) ([]uint16, error)
}

type Publisher interface {
	Publish(ctx context.Context, readings []model.Reading) error
}

type Config struct {
	Interval       time.Duration
	IOTimeout      time.Duration
	PrimaryCount   uint16
	AuxiliaryCount uint16
	// nil selects classifier.DefaultThresholds; zero thresholds are honoured.
	Thresholds     *classifier.Thresholds
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = DefaultIOTimeout
	}
	if c.PrimaryCount == 0 {
		c.PrimaryCount = DefaultPrimaryCount
	}
	if c.AuxiliaryCount == 0 {
		c.AuxiliaryCount = DefaultAuxiliaryCount
	}
	if c.Thresholds == nil {
		t := classifier.DefaultThresholds
		c.Thresholds = &t
	}
	return c
}

type Poller struct {
	cfg        Config
	thresholds classifier.Thresholds
	source     RegisterSource
	decoder    *decoder.Decoder
	publisher  Publisher
	state      *State
	logger     *zap.Logger

	// owned by the polling goroutine
	lastFlow *uint16
}

// New builds a poller. Block counts shorter than the decoder needs are raised
// to the decoder's length.
func New(cfg Config, source RegisterSource, dec *decoder.Decoder, pub Publisher) *Poller {
	cfg = cfg.withDefaults()
	cfg.PrimaryCount = max(cfg.PrimaryCount, uint16(dec.PrimaryLength()))
	cfg.AuxiliaryCount = max(cfg.AuxiliaryCount, uint16(dec.AuxiliaryLength()))
	return &Poller{
		cfg:        cfg,
		thresholds: *cfg.Thresholds,
		source:     source,
		decoder:    dec,
		publisher:  pub,
		state:      NewState(),
		logger:     zap.L(),
	}
}

// State is the latest cycle outcome, safe to read from other goroutines.
func (p *Poller) State() *State {
	return p.state
}

// Run polls until ctx is cancelled. Failed cycles are logged and retried after
// the same fixed interval.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("starting modbus polling loop",
		zap.Duration("interval", p.cfg.Interval),
		zap.Uint16("primary_base", p.decoder.PrimaryBase()),
		zap.Uint16("primary_count", p.cfg.PrimaryCount),
		zap.Uint16("auxiliary_base", p.decoder.AuxiliaryBase()),
		zap.Uint16("auxiliary_count", p.cfg.AuxiliaryCount),
	)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("polling stopped")
			return nil
		case <-timer.C:
		}

		if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			p.logCycleError(err)
		}
		timer.Reset(p.cfg.Interval)
	}
}

func (p *Poller) logCycleError(err error) {
	switch {
	case errors.Is(err, ErrCyclePanic):
		p.logger.Error("poll cycle failed", zap.Error(err))
	case errors.Is(err, decoder.ErrInsufficientData):
		p.logger.Warn("failed to read main block", zap.Error(err))
	default:
		p.logger.Warn("modbus device not available", zap.Error(err))
	}
}

// PollOnce runs a single cycle. Nothing is published when the primary block
// cannot be read or decoded.
func (p *Poller) PollOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCyclePanic, r)
		}
		p.state.record(err)
	}()

	primary, err := p.read(ctx, p.decoder.PrimaryBase(), p.cfg.PrimaryCount)
	if err != nil {
		return err
	}
	auxiliary, auxErr := p.read(ctx, p.decoder.AuxiliaryBase(), p.cfg.AuxiliaryCount)
	if auxErr != nil {
		p.logger.Debug("auxiliary block unavailable", zap.Error(auxErr))
		auxiliary = nil
	}

	snap, err := p.decoder.Decode(primary, auxiliary)
	if err != nil {
		return err
	}
	if snap.PVPower != snap.PVAveragePower {
		p.logger.Debug("pv power reading discarded", zap.Int("raw", snap.PVAveragePower))
	}

	mode := p.thresholds.Mode(snap)
	flags := p.thresholds.Flags(snap)

	pubCtx, cancel := contxt.NewContext(ctx, p.cfg.IOTimeout)
	defer cancel()
	if err := p.publisher.Publish(pubCtx, publisher.Readings(snap, mode, flags)); err != nil {
		p.logger.Error("failed to publish readings", zap.Error(err))
	}

	p.trackFlow(snap.FlowStatus)
	p.state.update(snap, mode, flags)
	p.logSummary(snap, mode)
	return nil
}

func (p *Poller) read(ctx context.Context, base, count uint16) ([]uint16, error) {
	readCtx, cancel := contxt.NewContext(ctx, p.cfg.IOTimeout)
	defer cancel()
	return p.source.ReadBlock(readCtx, base, count)
}

// trackFlow logs a transition whenever the flow status differs from the
// previous successful cycle. The first cycle only records the baseline.
func (p *Poller) trackFlow(flow uint16) {
	if p.lastFlow == nil {
		p.lastFlow = &flow
		return
	}
	t := bits.Diff(*p.lastFlow, flow)
	if t.Any() {
		p.logger.Info("flow changed",
			zap.String("prev", hexWord(t.Prev)),
			zap.String("cur", hexWord(t.Cur)),
			zap.String("xor", hexWord(t.XOR)),
			zap.String("bits", bits.Text(t.XOR)),
		)
	}
	p.lastFlow = &flow
}

func (p *Poller) logSummary(s model.Snapshot, mode model.OperatingMode) {
	p.logger.Info("poll cycle",
		zap.Int("pv_w", s.PVPower),
		zap.Int("mains_w", s.MainsPower),
		zap.Int("output_w", s.OutputPower),
		zap.Float64("battery_v", s.BatteryVoltage),
		zap.Float64("battery_a", s.BatteryCurrent),
		zap.Int("battery_w", s.BatteryPower),
		zap.Int("soc", s.StateOfCharge),
		zap.Int("work_mode", s.WorkMode),
		zap.String("work_mode_text", s.WorkModeText),
		zap.String("operation_mode", mode.String()),
		zap.Int("load_percent", s.LoadPercent),
		zap.Int("charger_temp", s.ChargerTemp),
		zap.Int("inverter_temp", s.InverterTemp),
		zap.Int("mppt_temp", s.MPPTTemp),
		zap.String("flow", hexWord(s.FlowStatus)),
		zap.Bool("fault", s.FaultActive),
	)
}

func hexWord(v uint16) string {
	return fmt.Sprintf("0x%04X", v)
}
