// Package store persists per-device state across restarts.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dokzlo13/sengledd/internal/sengled"
)

// Record is one persisted device entry.
type Record struct {
	Host       string
	Capability sengled.Capability
	State      sengled.LightState
}

// DeviceStore reads and writes device records in SQLite.
type DeviceStore struct {
	db *sql.DB
}

// New creates a DeviceStore on an opened database.
func New(db *sql.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

// Save upserts the capability and last canonical state for a host.
func (s *DeviceStore) Save(rec Record) error {
	payload, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO device_state (host, capability, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET
			capability = excluded.capability,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, rec.Host, rec.Capability.String(), string(payload), time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to save device state: %w", err)
	}
	return nil
}

// Load returns the persisted record for a host, or nil when none
// exists or the stored payload no longer parses.
func (s *DeviceStore) Load(host string) (*Record, error) {
	var capStr, payload string
	err := s.db.QueryRow(`
		SELECT capability, payload FROM device_state WHERE host = ?
	`, host).Scan(&capStr, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load device state: %w", err)
	}

	capability, err := sengled.ParseCapability(capStr)
	if err != nil {
		return nil, nil
	}

	var state sengled.LightState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, nil
	}

	return &Record{Host: host, Capability: capability, State: state}, nil
}

// Clear removes all persisted device records.
func (s *DeviceStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM device_state`)
	return err
}
