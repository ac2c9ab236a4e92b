package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/anicoll/vevor-integration/internal/pkg/model"
)

const (
	qosAtMostOnce  byte = 0
	qosAtLeastOnce byte = 1
)

// RegisterSensor publishes the retained discovery config of one sensor.
func (s *service) RegisterSensor(ctx context.Context, sensor model.Sensor) error {
	payload, err := json.Marshal(s.registerMsg(sensor))
	if err != nil {
		return err
	}
	topic := s.topic(sensor, "config")
	if err := wait(ctx, s.client.Publish(topic, qosAtLeastOnce, true, payload)); err != nil {
		return fmt.Errorf("publish discovery %s: %w", topic, err)
	}
	return nil
}

// Write publishes the retained state of every reading. A failed reading does
// not hold back the rest; the failures are returned together.
func (s *service) Write(ctx context.Context, readings []model.Reading) error {
	var errs []error
	for _, r := range readings {
		topic := s.topic(r.Sensor, "state")
		if err := wait(ctx, s.client.Publish(topic, qosAtMostOnce, true, r.Value.String())); err != nil {
			errs = append(errs, fmt.Errorf("publish state %s: %w", topic, err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func (s *service) topic(sensor model.Sensor, suffix string) string {
	return fmt.Sprintf("%s/%s/%s/%s", s.prefix, sensor.Component, sensor.UniqueID, suffix)
}

func (s *service) registerMsg(sensor model.Sensor) model.RegisterMessage {
	msg := model.RegisterMessage{
		Name:              sensor.Name,
		ID:                sensor.UniqueID,
		StateTopic:        s.topic(sensor, "state"),
		UnitOfMeasurement: sensor.Unit,
		DeviceClass:       sensor.DeviceClass,
		StateClass:        sensor.StateClass,
		Icon:              sensor.Icon,
		Device: model.RegisterDevice{
			Name:         s.device.Name,
			Identifiers:  []string{s.device.ID},
			Model:        s.device.Model,
			Manufacturer: s.device.Manufacturer,
		},
	}
	if sensor.Component == model.ComponentBinarySensor {
		msg.PayloadOn = model.PayloadOn
		msg.PayloadOff = model.PayloadOff
	}
	return msg
}

func wait(ctx context.Context, token paho_mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
