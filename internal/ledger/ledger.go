// Package ledger provides an append-only history of commands issued
// to bulbs, for auditing and diagnosing flaky devices.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry represents a single recorded command
type Entry struct {
	ID        int64
	CommandID string
	Host      string
	Func      string
	Param     map[string]any
	OK        bool
	Error     string
	Timestamp time.Time
}

// Ledger provides append-only command logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends a command outcome and returns its correlation id.
func (l *Ledger) Record(host, fn string, param map[string]any, cmdErr error) (string, error) {
	var paramJSON []byte
	var err error
	if param != nil {
		paramJSON, err = json.Marshal(param)
		if err != nil {
			return "", fmt.Errorf("failed to marshal param: %w", err)
		}
	}

	commandID := uuid.NewString()
	ok := 1
	errMsg := ""
	if cmdErr != nil {
		ok = 0
		errMsg = cmdErr.Error()
	}

	_, err = l.db.Exec(`
		INSERT INTO command_ledger (command_id, host, func, param, ok, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, commandID, host, fn, string(paramJSON), ok, errMsg, time.Now().UTC().Unix())
	if err != nil {
		return "", fmt.Errorf("failed to record command: %w", err)
	}
	return commandID, nil
}

// RecentByHost returns the newest entries for one host, newest first.
func (l *Ledger) RecentByHost(host string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, command_id, host, func, param, ok, error, timestamp
		FROM command_ledger
		WHERE host = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, host, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var paramJSON sql.NullString
		var ok int
		var ts int64
		if err := rows.Scan(&e.ID, &e.CommandID, &e.Host, &e.Func, &paramJSON, &ok, &e.Error, &ts); err != nil {
			return nil, err
		}
		e.OK = ok == 1
		e.Timestamp = time.Unix(ts, 0).UTC()
		if paramJSON.Valid && paramJSON.String != "" {
			_ = json.Unmarshal([]byte(paramJSON.String), &e.Param)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Prune removes entries older than the retention period. Returns the
// number of deleted rows.
func (l *Ledger) Prune(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Unix()
	res, err := l.db.Exec(`DELETE FROM command_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
