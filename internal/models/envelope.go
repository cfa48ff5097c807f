package models

import (
	"time"
)

// Envelope wraps an Alert with publishing metadata for the Kafka channel
type Envelope struct {
	Alert *Alert `json:"alert"`

	PublishedAt  time.Time `json:"published_at"`
	Node         string    `json:"node"`
	PartitionKey string    `json:"partition_key"`
}

// NewEnvelope creates a new envelope wrapping an alert
func NewEnvelope(alert *Alert, node string) *Envelope {
	return &Envelope{
		Alert:        alert,
		PublishedAt:  time.Now().UTC(),
		Node:         node,
		PartitionKey: alert.Table, // partition by table
	}
}
