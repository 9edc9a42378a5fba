// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

// Action names served by ems-server.
const (
	ActionStatus   = "status"
	ActionList     = "list"
	ActionShow     = "show"
	ActionSnapshot = "snapshot"
)

// StatusResponse is the data of a status reply.
type StatusResponse struct {
	Version        string  `cbor:"version"`
	UptimeSeconds  float64 `cbor:"uptime_seconds"`
	Workers        int     `cbor:"workers"`
	QueueDepth     int     `cbor:"queue_depth"`
	QueueCapacity  int     `cbor:"queue_capacity"`
	ActiveSessions int     `cbor:"active_sessions"`
	SessionsServed uint64  `cbor:"sessions_served"`
	Events         int     `cbor:"events"`
	Snapshots      uint64  `cbor:"snapshots"`
}

// ListResponse is the data of a list reply.
type ListResponse struct {
	EventIDs []uint32 `cbor:"event_ids"`
}

// ShowRequest carries the fields of a show request.
type ShowRequest struct {
	EventID uint32 `cbor:"event_id"`
}

// ShowResponse is the data of a show reply. Seats are row-major.
type ShowResponse struct {
	EventID uint32   `cbor:"event_id"`
	Rows    uint64   `cbor:"rows"`
	Cols    uint64   `cbor:"cols"`
	Seats   []uint32 `cbor:"seats"`
}

// SnapshotResponse acknowledges a snapshot request. The dump itself
// runs on the server's main loop after the reply is sent.
type SnapshotResponse struct {
	Queued bool `cbor:"queued"`
}
