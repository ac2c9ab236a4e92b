package cmd

import (
	"context"
	"time"

	"github.com/anicoll/vevor-integration/internal/pkg/model"
)

// MockRegisterSource is a mock implementation of the RegisterSource interface.
type MockRegisterSource struct {
	ReadBlockFunc func(ctx context.Context, base, count uint16) ([]uint16, error)
	CloseFunc     func() error
}

func (m *MockRegisterSource) ReadBlock(ctx context.Context, base, count uint16) ([]uint16, error) {
	if m.ReadBlockFunc != nil {
		return m.ReadBlockFunc(ctx, base, count)
	}
	return make([]uint16, count), nil
}

func (m *MockRegisterSource) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// MockSink is a mock implementation of publisher.Sink.
type MockSink struct {
	RegisterSensorFunc func(ctx context.Context, sensor model.Sensor) error
	WriteFunc          func(ctx context.Context, readings []model.Reading) error
}

func (m *MockSink) RegisterSensor(ctx context.Context, sensor model.Sensor) error {
	if m.RegisterSensorFunc != nil {
		return m.RegisterSensorFunc(ctx, sensor)
	}
	return nil
}

func (m *MockSink) Write(ctx context.Context, readings []model.Reading) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, readings)
	}
	return nil
}

// MockHistoryStore is a mock implementation of the HistoryStore interface.
type MockHistoryStore struct {
	MockSink
	CleanupFunc             func(ctx context.Context, retention time.Duration) (int64, error)
	GetLatestPropertiesFunc func(ctx context.Context) (model.Properties, error)
	GetPropertiesFunc       func(ctx context.Context, uniqueID string, from, to *time.Time) (model.Properties, error)
}

func (m *MockHistoryStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if m.CleanupFunc != nil {
		return m.CleanupFunc(ctx, retention)
	}
	return 0, nil
}

func (m *MockHistoryStore) GetLatestProperties(ctx context.Context) (model.Properties, error) {
	if m.GetLatestPropertiesFunc != nil {
		return m.GetLatestPropertiesFunc(ctx)
	}
	return model.Properties{}, nil
}

func (m *MockHistoryStore) GetProperties(ctx context.Context, uniqueID string, from, to *time.Time) (model.Properties, error) {
	if m.GetPropertiesFunc != nil {
		return m.GetPropertiesFunc(ctx, uniqueID, from, to)
	}
	return model.Properties{}, nil
}
