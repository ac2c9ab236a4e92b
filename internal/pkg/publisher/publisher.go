package publisher

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/anicoll/vevor-integration/internal/pkg/model"
)

var errAlreadyRegistered = errors.New("publisher already registered")

// Sink receives sensor discovery metadata and readings.
type Sink interface {
	// RegisterSensor announces a sensor, keyed by its unique id.
	RegisterSensor(ctx context.Context, sensor model.Sensor) error
	// Write publishes the readings of one cycle; the latest write wins.
	Write(ctx context.Context, readings []model.Reading) error
}

// Publisher fans readings out to the registered sinks. Each sensor is
// registered once per sink; readings are written every cycle.
type Publisher struct {
	mu         sync.Mutex
	sinks      map[string]Sink
	registered map[string]map[string]struct{}
	logger     *zap.Logger
}

func New() *Publisher {
	return &Publisher{
		sinks:      make(map[string]Sink),
		registered: make(map[string]map[string]struct{}),
		logger:     zap.L(),
	}
}

func (p *Publisher) RegisterPublisher(name string, sink Sink) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sinks[name]; ok {
		return errAlreadyRegistered
	}
	p.sinks[name] = sink
	p.registered[name] = make(map[string]struct{})
	return nil
}

// Reset forgets which sensors the named sink has seen, so they are
// announced again on the next publish.
func (p *Publisher) Reset(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.registered[name]; ok {
		p.registered[name] = make(map[string]struct{})
	}
}

// Publish sends readings to every sink. A failing sink is logged and skipped;
// it never stops the others.
func (p *Publisher) Publish(ctx context.Context, readings []model.Reading) error {
	for _, name := range p.names() {
		sink := p.sink(name)
		for _, r := range readings {
			if p.isRegistered(name, r.Sensor.UniqueID) {
				continue
			}
			if err := sink.RegisterSensor(ctx, r.Sensor); err != nil {
				p.logger.Error("failed to register sensor", zap.Error(err), zap.String("publisher", name), zap.String("sensor", r.Sensor.UniqueID))
				continue
			}
			p.markRegistered(name, r.Sensor.UniqueID)
		}
		if err := sink.Write(ctx, readings); err != nil {
			p.logger.Error("failed to publish data", zap.Error(err), zap.String("publisher", name))
			continue
		}
		p.logger.Debug("updated sensors", zap.Int("count", len(readings)), zap.String("publisher", name))
	}
	return nil
}

func (p *Publisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.sinks))
	for name := range p.sinks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (p *Publisher) sink(name string) Sink {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sinks[name]
}

func (p *Publisher) isRegistered(name, uniqueID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.registered[name][uniqueID]
	return ok
}

func (p *Publisher) markRegistered(name, uniqueID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered[name][uniqueID] = struct{}{}
}
