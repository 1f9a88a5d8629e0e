package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/banshee-data/barvelocity/internal/lift"
)

// SessionRecord is the persisted result of one analysed video. Records are
// written once and never updated. It encodes as a flat JSON document: the
// session statistics sit at the top level next to the session metadata.
type SessionRecord struct {
	ID             string
	CreatedAt      time.Time
	SourceFilename string
	LiftType       string
	WeightKg       *float64
	PlateDiameterM float64
	Video          lift.VideoInfo
	Stats          lift.SessionStats
	Velocities     []lift.VelocitySample
}

type sessionDocument struct {
	ID             string                `json:"session_id"`
	CreatedAt      time.Time             `json:"created_at"`
	SourceFilename string                `json:"source_filename"`
	LiftType       string                `json:"lift_type,omitempty"`
	WeightKg       *float64              `json:"weight_kg,omitempty"`
	PlateDiameterM float64               `json:"plate_diameter_m"`
	Video          lift.VideoInfo        `json:"video"`
	Velocities     []lift.VelocitySample `json:"velocities,omitempty"`
	lift.SessionStats
}

func (r SessionRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionDocument{
		ID:             r.ID,
		CreatedAt:      r.CreatedAt,
		SourceFilename: r.SourceFilename,
		LiftType:       r.LiftType,
		WeightKg:       r.WeightKg,
		PlateDiameterM: r.PlateDiameterM,
		Video:          r.Video,
		Velocities:     r.Velocities,
		SessionStats:   r.Stats,
	})
}

func (r *SessionRecord) UnmarshalJSON(data []byte) error {
	var doc sessionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*r = SessionRecord{
		ID:             doc.ID,
		CreatedAt:      doc.CreatedAt,
		SourceFilename: doc.SourceFilename,
		LiftType:       doc.LiftType,
		WeightKg:       doc.WeightKg,
		PlateDiameterM: doc.PlateDiameterM,
		Video:          doc.Video,
		Stats:          doc.SessionStats,
		Velocities:     doc.Velocities,
	}
	return nil
}

// SessionSummary is one row of ListSessions.
type SessionSummary struct {
	ID              string    `json:"session_id"`
	CreatedAt       time.Time `json:"created_at"`
	LiftType        string    `json:"lift_type,omitempty"`
	TotalReps       int       `json:"total_reps"`
	PeakVelocity    float64   `json:"peak_velocity"`
	CalibrationUsed bool      `json:"calibration_used"`
}

// InsertSession writes rec, its reps and its velocity trace in one
// transaction. Writing an id twice returns ErrSessionExists.
func (db *DB) InsertSession(ctx context.Context, rec *SessionRecord) error {
	if _, err := uuid.Parse(rec.ID); err != nil {
		return fmt.Errorf("invalid session id %q: %w", rec.ID, err)
	}
	statsJSON, err := json.Marshal(rec.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO sessions (
			session_id, created_at, source_filename, lift_type, weight_kg, plate_diameter_m,
			fps, width, height, total_reps, peak_velocity, mean_velocity, total_distance_m,
			calibration_used, pixels_per_meter, stats_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.SourceFilename, rec.LiftType, rec.WeightKg, rec.PlateDiameterM,
		rec.Video.FPS, rec.Video.Width, rec.Video.Height, rec.Stats.TotalReps, rec.Stats.PeakVelocity, rec.Stats.MeanVelocity, rec.Stats.TotalDistanceM,
		rec.Stats.CalibrationUsed, rec.Stats.PixelsPerMeter, string(statsJSON),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrSessionExists, rec.ID)
		}
		return fmt.Errorf("insert session: %w", err)
	}

	repStmt, err := tx.PrepareContext(ctx, `INSERT INTO reps (
			session_id, rep_index, start_time, end_time, duration_s, distance_m, mean_velocity_m_s, peak_velocity_m_s
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer repStmt.Close()
	for _, r := range rec.Stats.Reps {
		if _, err := repStmt.ExecContext(ctx, rec.ID, r.Index, r.StartTime, r.EndTime, r.Duration, r.DistanceM, r.MeanVelocity, r.PeakVelocity); err != nil {
			return fmt.Errorf("insert rep %d: %w", r.Index, err)
		}
	}

	velStmt, err := tx.PrepareContext(ctx, `INSERT INTO velocity_samples (
			session_id, seq, timestamp_s, velocity_m_s, raw_velocity_m_s
		) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer velStmt.Close()
	for i, v := range rec.Velocities {
		if _, err := velStmt.ExecContext(ctx, rec.ID, i, v.Timestamp, v.MPS, v.RawMPS); err != nil {
			return fmt.Errorf("insert velocity sample %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetSession loads a session with its velocity trace. Absent or malformed
// ids return ErrNotFound.
func (db *DB) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var (
		rec       SessionRecord
		createdAt string
		weight    sql.NullFloat64
		statsJSON string
	)
	err := db.QueryRowContext(ctx, `SELECT session_id, created_at, source_filename, lift_type, weight_kg,
			plate_diameter_m, fps, width, height, stats_json
		FROM sessions WHERE session_id = ?`, id).Scan(
		&rec.ID, &createdAt, &rec.SourceFilename, &rec.LiftType, &weight,
		&rec.PlateDiameterM, &rec.Video.FPS, &rec.Video.Width, &rec.Video.Height, &statsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if weight.Valid {
		w := weight.Float64
		rec.WeightKg = &w
	}
	if err := json.Unmarshal([]byte(statsJSON), &rec.Stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT timestamp_s, velocity_m_s, raw_velocity_m_s
		FROM velocity_samples WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query velocities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v lift.VelocitySample
		if err := rows.Scan(&v.Timestamp, &v.MPS, &v.RawMPS); err != nil {
			return nil, err
		}
		rec.Velocities = append(rec.Velocities, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListSessions returns the most recent sessions, newest first.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `SELECT session_id, created_at, lift_type, total_reps, peak_velocity, calibration_used
		FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			s         SessionSummary
			createdAt string
		)
		if err := rows.Scan(&s.ID, &createdAt, &s.LiftType, &s.TotalReps, &s.PeakVelocity, &s.CalibrationUsed); err != nil {
			return nil, err
		}
		if s.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
