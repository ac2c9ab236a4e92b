package model

import "time"

// Property is one stored reading in the history table.
type Property struct {
	Id        int64     `json:"id"`
	TimeStamp time.Time `json:"timestamp"`
	UniqueID  string    `json:"unique_id"`
	Kind      ValueKind `json:"kind"`
	Value     string    `json:"value"`
	Unit      string    `json:"unit_of_measurement"`
}
type Properties []Property
