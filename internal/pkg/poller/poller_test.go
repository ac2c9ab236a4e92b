package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/anicoll/vevor-integration/internal/pkg/classifier"
	"github.com/anicoll/vevor-integration/internal/pkg/decoder"
	"github.com/anicoll/vevor-integration/internal/pkg/model"
	"github.com/anicoll/vevor-integration/internal/pkg/modbus"
	"github.com/anicoll/vevor-integration/internal/pkg/publisher"
	"github.com/anicoll/vevor-integration/internal/pkg/registers"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type read struct {
	base, count uint16
}

type fakeSource struct {
	mu     sync.Mutex
	blocks map[uint16][]uint16
	errs   map[uint16]error
	panics bool
	reads  []read
}

func (f *fakeSource) ReadBlock(_ context.Context, base, count uint16) ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, read{base, count})
	if f.panics {
		panic("serial port gone")
	}
	if err := f.errs[base]; err != nil {
		return nil, err
	}
	return f.blocks[base], nil
}

func (f *fakeSource) setFlow(v uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[200][31] = v
}

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]model.Reading
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, readings []model.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, readings)
	return f.err
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func dischargingSource() *fakeSource {
	primary := make([]uint16, 60)
	primary[1] = 3       // work mode
	primary[13] = 600    // output power
	primary[17] = 0xFF6A // battery power -150
	primary[23] = 800    // pv avg power
	primary[31] = 0x0251 // flow status
	auxiliary := make([]uint16, 40)
	return &fakeSource{
		blocks: map[uint16][]uint16{200: primary, 100: auxiliary},
		errs:   map[uint16]error{},
	}
}

func newTestPoller(t *testing.T, src RegisterSource, pub Publisher) (*Poller, *observer.ObservedLogs) {
	t.Helper()
	m, err := registers.Default()
	require.NoError(t, err)
	dec, err := decoder.New(m, decoder.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	p := New(Config{Interval: 10 * time.Millisecond}, src, dec, pub)
	p.logger = zap.New(core)
	return p, logs
}

func TestPollOnce_PublishesSnapshot(t *testing.T) {
	src := dischargingSource()
	pub := &fakePublisher{}
	p, logs := newTestPoller(t, src, pub)

	require.NoError(t, p.PollOnce(context.Background()))

	assert.Equal(t, []read{{200, 60}, {100, 40}}, src.reads)
	require.Equal(t, 1, pub.count())

	values := map[string]model.Value{}
	for _, r := range pub.batches[0] {
		values[r.Sensor.UniqueID] = r.Value
	}
	assert.Equal(t, model.Text(string(model.BatteryDischarge)), values[publisher.OperationMode.UniqueID])
	assert.Equal(t, model.Bool(true), values[publisher.BatteryDischarging.UniqueID])
	assert.Equal(t, model.Int(0x0251), values[publisher.FlowStatusRaw.UniqueID])

	status, ok := p.State().Latest()
	require.True(t, ok)
	assert.Equal(t, model.BatteryDischarge, status.Mode)
	assert.Equal(t, fixedNow, status.UpdatedAt)
	assert.Equal(t, uint64(1), status.Cycles)
	assert.Zero(t, status.Failures)
	assert.True(t, status.Snapshot.HasAuxiliary())

	summary := logs.FilterMessage("poll cycle").All()
	require.Len(t, summary, 1)
	assert.Equal(t, "BatteryDischarge", summary[0].ContextMap()["operation_mode"])
	assert.Equal(t, "0x0251", summary[0].ContextMap()["flow"])
}

func TestPollOnce_TransportFailureSkipsCycle(t *testing.T) {
	src := dischargingSource()
	src.errs[200] = modbus.ErrTransport
	pub := &fakePublisher{}
	p, _ := newTestPoller(t, src, pub)

	err := p.PollOnce(context.Background())
	assert.ErrorIs(t, err, modbus.ErrTransport)
	assert.Zero(t, pub.count())
	assert.Len(t, src.reads, 1)

	status, ok := p.State().Latest()
	assert.False(t, ok)
	assert.Equal(t, uint64(1), status.Failures)
	assert.NotEmpty(t, status.LastError)
}

func TestPollOnce_ShortPrimarySkipsCycle(t *testing.T) {
	src := dischargingSource()
	src.blocks[200] = src.blocks[200][:20]
	pub := &fakePublisher{}
	p, _ := newTestPoller(t, src, pub)

	err := p.PollOnce(context.Background())
	assert.ErrorIs(t, err, decoder.ErrInsufficientData)
	assert.Zero(t, pub.count())
}

func TestPollOnce_AuxiliaryFailureStillPublishes(t *testing.T) {
	src := dischargingSource()
	src.errs[100] = errors.New("illegal data address")
	pub := &fakePublisher{}
	p, logs := newTestPoller(t, src, pub)

	require.NoError(t, p.PollOnce(context.Background()))
	assert.Equal(t, 1, pub.count())

	status, ok := p.State().Latest()
	require.True(t, ok)
	assert.False(t, status.Snapshot.HasAuxiliary())
	assert.Equal(t, 1, logs.FilterMessage("auxiliary block unavailable").Len())
}

func TestPollOnce_PublishErrorDoesNotFailCycle(t *testing.T) {
	src := dischargingSource()
	pub := &fakePublisher{err: errors.New("broker down")}
	p, logs := newTestPoller(t, src, pub)

	require.NoError(t, p.PollOnce(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("failed to publish readings").Len())
}

func TestPollOnce_RecoversPanic(t *testing.T) {
	src := dischargingSource()
	src.panics = true
	pub := &fakePublisher{}
	p, _ := newTestPoller(t, src, pub)

	err := p.PollOnce(context.Background())
	assert.ErrorIs(t, err, ErrCyclePanic)
	assert.Contains(t, err.Error(), "serial port gone")

	status, _ := p.State().Latest()
	assert.Equal(t, uint64(1), status.Failures)
}

func TestPollOnce_FlowTransitionLogged(t *testing.T) {
	src := dischargingSource()
	pub := &fakePublisher{}
	p, logs := newTestPoller(t, src, pub)

	require.NoError(t, p.PollOnce(context.Background()))
	assert.Zero(t, logs.FilterMessage("flow changed").Len())

	require.NoError(t, p.PollOnce(context.Background()))
	assert.Zero(t, logs.FilterMessage("flow changed").Len())

	src.setFlow(0x0255)
	require.NoError(t, p.PollOnce(context.Background()))

	changed := logs.FilterMessage("flow changed").All()
	require.Len(t, changed, 1)
	fields := changed[0].ContextMap()
	assert.Equal(t, "0x0251", fields["prev"])
	assert.Equal(t, "0x0255", fields["cur"])
	assert.Equal(t, "0x0004", fields["xor"])
	assert.Equal(t, "b2", fields["bits"])
}

func TestPollOnce_FailedCycleKeepsFlowBaseline(t *testing.T) {
	src := dischargingSource()
	pub := &fakePublisher{}
	p, logs := newTestPoller(t, src, pub)

	require.NoError(t, p.PollOnce(context.Background()))

	src.errs[200] = modbus.ErrTransport
	require.Error(t, p.PollOnce(context.Background()))

	delete(src.errs, 200)
	src.setFlow(0x0255)
	require.NoError(t, p.PollOnce(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("flow changed").Len())
}

func TestRun_RetriesUntilCancelled(t *testing.T) {
	src := dischargingSource()
	src.errs[200] = modbus.ErrTransport
	pub := &fakePublisher{}
	p, logs := newTestPoller(t, src, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool {
		status, _ := p.State().Latest()
		return status.Failures >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Zero(t, pub.count())
	assert.GreaterOrEqual(t, logs.FilterMessage("modbus device not available").Len(), 3)
}

func TestRun_RecoversAfterFailure(t *testing.T) {
	src := dischargingSource()
	src.errs[200] = modbus.ErrTransport
	pub := &fakePublisher{}
	p, _ := newTestPoller(t, src, pub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	assert.Eventually(t, func() bool {
		status, _ := p.State().Latest()
		return status.Failures >= 1
	}, time.Second, 5*time.Millisecond)

	src.mu.Lock()
	delete(src.errs, 200)
	src.mu.Unlock()

	assert.Eventually(t, func() bool {
		return pub.count() >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestPollOnce_ZeroThresholdsHonoured(t *testing.T) {
	m, err := registers.Default()
	require.NoError(t, err)
	dec, err := decoder.New(m, decoder.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	src := dischargingSource()
	src.blocks[200][4] = 10 // mains 10 W
	src.blocks[200][17] = 0 // battery idle
	src.blocks[200][23] = 0 // no pv
	src.blocks[200][13] = 0 // no output

	zero := classifier.Thresholds{}
	withZero := New(Config{Thresholds: &zero}, src, dec, &fakePublisher{})
	withZero.logger = zap.NewNop()
	require.NoError(t, withZero.PollOnce(context.Background()))
	status, ok := withZero.State().Latest()
	require.True(t, ok)
	assert.Equal(t, model.BypassGrid, status.Mode)
	assert.True(t, status.Flags.GridImporting)

	defaults := New(Config{}, src, dec, &fakePublisher{})
	defaults.logger = zap.NewNop()
	require.NoError(t, defaults.PollOnce(context.Background()))
	status, ok = defaults.State().Latest()
	require.True(t, ok)
	assert.Equal(t, model.IdleOrUnknown, status.Mode)
	assert.False(t, status.Flags.GridImporting)
}

func TestNew_RaisesShortCounts(t *testing.T) {
	m, err := registers.Default()
	require.NoError(t, err)
	dec, err := decoder.New(m)
	require.NoError(t, err)

	p := New(Config{PrimaryCount: 10, AuxiliaryCount: 2}, dischargingSource(), dec, &fakePublisher{})
	assert.Equal(t, uint16(dec.PrimaryLength()), p.cfg.PrimaryCount)
	assert.Equal(t, uint16(dec.AuxiliaryLength()), p.cfg.AuxiliaryCount)
	assert.Equal(t, DefaultInterval, p.cfg.Interval)
}
