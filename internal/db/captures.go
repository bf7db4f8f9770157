package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/benchlink/internal/scope"
	"github.com/banshee-data/benchlink/internal/waveform"
)

var ErrNotFound = errors.New("not found")

// CaptureRecord is a stored channel capture. Raw is nil in listings.
type CaptureRecord struct {
	ID         string            `json:"id"`
	Instrument string            `json:"instrument"`
	Channel    int               `json:"channel"`
	Preamble   waveform.Preamble `json:"preamble"`
	TimeBase   waveform.TimeBase `json:"time_base"`
	Summary    waveform.Summary  `json:"summary"`
	AcquiredAt time.Time         `json:"acquired_at"`
	Raw        []byte            `json:"-"`
}

// Waveform recalibrates the stored raw codes.
func (r CaptureRecord) Waveform() waveform.Waveform {
	return waveform.Decode(r.Preamble, r.Raw, r.TimeBase)
}

// InsertCapture stores c under a new id and returns it.
func (db *DB) InsertCapture(instrument string, c scope.Capture) (string, error) {
	id := uuid.NewString()
	acquired := c.AcquiredAt
	if acquired.IsZero() {
		acquired = time.Now()
	}
	raw := c.Raw
	if raw == nil {
		raw = []byte{}
	}
	p := c.Preamble
	sum := waveform.Summarize(waveform.Decode(p, raw, c.TimeBase))

	_, err := db.Exec(`INSERT INTO captures (
			capture_id, instrument, channel, points, average_count,
			x_increment, x_origin, x_reference,
			y_increment, y_origin, y_reference, time_base, raw,
			v_min, v_max, v_avg, v_rms, acquired_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, instrument, c.Channel, len(raw), p.Count,
		p.XIncrement, p.XOrigin, p.XReference,
		p.YIncrement, p.YOrigin, p.YReference, c.TimeBase.String(), raw,
		sum.Min, sum.Max, sum.Mean, sum.RMS, acquired.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert capture: %w", err)
	}
	return id, nil
}

// GetCapture loads one capture including its raw codes. The summary is
// recomputed from the recalibrated waveform.
func (db *DB) GetCapture(id string) (*CaptureRecord, error) {
	row := db.QueryRow(`SELECT capture_id, instrument, channel, points, average_count,
			x_increment, x_origin, x_reference,
			y_increment, y_origin, y_reference, time_base,
			acquired_unix_nanos, raw
		FROM captures WHERE capture_id = ?`, id)

	rec, err := scanCapture(row.Scan, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("capture %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	rec.Summary = waveform.Summarize(rec.Waveform())
	return rec, nil
}

// ListCaptures returns the most recent captures, newest first, without raw
// data. A non-positive limit means 100.
func (db *DB) ListCaptures(limit int) ([]CaptureRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT capture_id, instrument, channel, points, average_count,
			x_increment, x_origin, x_reference,
			y_increment, y_origin, y_reference, time_base,
			acquired_unix_nanos, v_min, v_max, v_avg, v_rms
		FROM captures ORDER BY acquired_unix_nanos DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CaptureRecord
	for rows.Next() {
		rec, err := scanCapture(rows.Scan, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanCapture(scan func(dest ...any) error, withRaw bool) (*CaptureRecord, error) {
	var (
		rec      CaptureRecord
		timeBase string
		acquired int64
	)
	dest := []any{
		&rec.ID, &rec.Instrument, &rec.Channel, &rec.Preamble.Points, &rec.Preamble.Count,
		&rec.Preamble.XIncrement, &rec.Preamble.XOrigin, &rec.Preamble.XReference,
		&rec.Preamble.YIncrement, &rec.Preamble.YOrigin, &rec.Preamble.YReference, &timeBase,
		&acquired,
	}
	var vMin, vMax, vAvg, vRMS sql.NullFloat64
	if withRaw {
		dest = append(dest, &rec.Raw)
	} else {
		dest = append(dest, &vMin, &vMax, &vAvg, &vRMS)
	}
	if err := scan(dest...); err != nil {
		return nil, err
	}

	tb, err := waveform.ParseTimeBase(timeBase)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", rec.ID, err)
	}
	rec.TimeBase = tb
	rec.AcquiredAt = time.Unix(0, acquired).UTC()
	if !withRaw {
		rec.Summary = waveform.Summary{
			Samples:    rec.Preamble.Points,
			Min:        vMin.Float64,
			Max:        vMax.Float64,
			PeakToPeak: vMax.Float64 - vMin.Float64,
			Mean:       vAvg.Float64,
			RMS:        vRMS.Float64,
		}
	}
	return &rec, nil
}
