package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/benchlink/internal/specan"
)

// SpectrumRecord is a stored spectrum analyzer trace.
type SpectrumRecord struct {
	ID         string       `json:"id"`
	Instrument string       `json:"instrument"`
	Center     float64      `json:"center_hz"`
	Span       float64      `json:"span_hz"`
	Trace      specan.Trace `json:"trace"`
	AcquiredAt time.Time    `json:"acquired_at"`
}

// InsertSpectrum stores tr as measured with s and returns its id.
func (db *DB) InsertSpectrum(instrument string, s specan.Settings, tr specan.Trace, acquired time.Time) (string, error) {
	power, err := json.Marshal(tr.Power)
	if err != nil {
		return "", err
	}
	axis, err := json.Marshal(tr.Axis)
	if err != nil {
		return "", err
	}
	var peak sql.NullFloat64
	if tr.Len() > 0 {
		peak = sql.NullFloat64{Float64: floats.Max(tr.Power), Valid: true}
	}
	if acquired.IsZero() {
		acquired = time.Now()
	}

	id := uuid.NewString()
	_, err = db.Exec(`INSERT INTO spectra (
			trace_id, instrument, center_hz, span_hz, points,
			power_json, axis_json, peak_dbm, acquired_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, instrument, s.Center, s.Span, tr.Len(),
		string(power), string(axis), peak, acquired.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert spectrum: %w", err)
	}
	return id, nil
}

// GetSpectrum loads one trace.
func (db *DB) GetSpectrum(id string) (*SpectrumRecord, error) {
	var (
		rec          SpectrumRecord
		power, axis  string
		acquiredNano int64
	)
	err := db.QueryRow(`SELECT trace_id, instrument, center_hz, span_hz,
			power_json, axis_json, acquired_unix_nanos
		FROM spectra WHERE trace_id = ?`, id).Scan(
		&rec.ID, &rec.Instrument, &rec.Center, &rec.Span, &power, &axis, &acquiredNano,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("spectrum %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(power), &rec.Trace.Power); err != nil {
		return nil, fmt.Errorf("spectrum %s power: %w", id, err)
	}
	if err := json.Unmarshal([]byte(axis), &rec.Trace.Axis); err != nil {
		return nil, fmt.Errorf("spectrum %s axis: %w", id, err)
	}
	rec.AcquiredAt = time.Unix(0, acquiredNano).UTC()
	return &rec, nil
}
