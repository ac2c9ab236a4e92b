package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anicoll/vevor-integration/internal/pkg/model"
)

// GetLatestProperties returns the newest stored reading of every sensor.
func (db *Database) GetLatestProperties(ctx context.Context) (model.Properties, error) {
	const query = `
	SELECT DISTINCT ON (unique_id) id, time_stamp, unique_id, kind, value, unit_of_measurement
	FROM readings
	ORDER BY unique_id, time_stamp DESC, id DESC;
	`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProperties(rows)
}

// GetProperties returns the readings of one sensor between from and to,
// newest first. Without a range the last two days are returned.
func (db *Database) GetProperties(ctx context.Context, uniqueID string, from, to *time.Time) (model.Properties, error) {
	if from == nil || to == nil {
		now := time.Now()
		start := now.AddDate(0, 0, -2)
		from, to = &start, &now
	}
	const query = `
	SELECT id, time_stamp, unique_id, kind, value, unit_of_measurement
	FROM readings
	WHERE unique_id = $1 AND time_stamp BETWEEN $2 AND $3
	ORDER BY time_stamp DESC, id DESC;
	`

	rows, err := db.pool.Query(ctx, query, uniqueID, *from, *to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProperties(rows)
}

func scanProperties(rows pgx.Rows) (model.Properties, error) {
	properties := model.Properties{}
	for rows.Next() {
		var property model.Property
		if err := rows.Scan(&property.Id, &property.TimeStamp, &property.UniqueID, &property.Kind, &property.Value, &property.Unit); err != nil {
			return nil, err
		}
		properties = append(properties, property)
	}

	if err := rows.Err(); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return properties, nil
		}
		return nil, err
	}

	return properties, nil
}
