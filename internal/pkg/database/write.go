package database

import (
	"context"

	"github.com/anicoll/vevor-integration/internal/pkg/model"
)

func (d *Database) Write(ctx context.Context, readings []model.Reading) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, r := range readings {
		if _, err := tx.Exec(ctx, `
			INSERT INTO readings (time_stamp, unique_id, kind, value, unit_of_measurement)
			VALUES ($1, $2, $3, $4, $5)
		`, r.Timestamp, r.Sensor.UniqueID, string(r.Value.Kind), r.Value.String(), r.Sensor.Unit); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (d *Database) RegisterSensor(ctx context.Context, sensor model.Sensor) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO sensors (unique_id, component, name, unit_of_measurement, device_class)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (unique_id) DO UPDATE SET
			component = EXCLUDED.component,
			name = EXCLUDED.name,
			unit_of_measurement = EXCLUDED.unit_of_measurement,
			device_class = EXCLUDED.device_class,
			updated_at = now();`,
		sensor.UniqueID, sensor.Component.String(), sensor.Name, sensor.Unit, sensor.DeviceClass)
	return err
}
