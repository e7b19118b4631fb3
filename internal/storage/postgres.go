package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/powersense/backend/internal/usage"
)

// PostgresStore persists readings and activity in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// Open connects to the database at the given DSN and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sensor_data (
	id              BIGSERIAL PRIMARY KEY,
	timestamp       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	voltage_val     DOUBLE PRECISION NOT NULL,
	current_val     DOUBLE PRECISION NOT NULL,
	inst_power_val  DOUBLE PRECISION NOT NULL,
	avg_current_val DOUBLE PRECISION NOT NULL,
	avg_power_val   DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS sensor_data_timestamp_idx ON sensor_data (timestamp);

CREATE TABLE IF NOT EXISTS activity_log (
	id       BIGSERIAL PRIMARY KEY,
	relay_id INTEGER NOT NULL,
	state    BOOLEAN NOT NULL,
	actor    TEXT NOT NULL,
	ts       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS activity_log_relay_ts_idx ON activity_log (relay_id, ts);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveReading appends one sensor sample.
func (s *PostgresStore) SaveReading(ctx context.Context, r Reading) error {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sensor_data (timestamp, voltage_val, current_val, inst_power_val, avg_current_val, avg_power_val)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ts, r.Voltage, r.Current, r.Power, r.AvgCurrent, r.AvgPower)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// LatestReading returns the most recent sample.
func (s *PostgresStore) LatestReading(ctx context.Context) (Reading, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT timestamp, voltage_val, current_val, inst_power_val, avg_current_val, avg_power_val
		FROM sensor_data
		ORDER BY timestamp DESC
		LIMIT 1`)

	var r Reading
	err := row.Scan(&r.Timestamp, &r.Voltage, &r.Current, &r.Power, &r.AvgCurrent, &r.AvgPower)
	if err == sql.ErrNoRows {
		return Reading{}, ErrNoReadings
	}
	if err != nil {
		return Reading{}, fmt.Errorf("query latest reading: %w", err)
	}
	return r, nil
}

// ReadingHistory returns the latest metrics plus per-metric series.
func (s *PostgresStore) ReadingHistory(ctx context.Context, window time.Duration) (History, error) {
	var h History

	latest, err := s.LatestReading(ctx)
	switch err {
	case nil:
		h.Current = latest.Current
		h.AvgCurrent = latest.AvgCurrent
		h.Voltage = latest.Voltage
		h.InstPower = latest.Power
		h.AvgPower = latest.AvgPower
	case ErrNoReadings:
		// empty history is not an error
	default:
		return History{}, err
	}

	cutoff := time.Now().Add(-window)
	for _, series := range []struct {
		column string
		dest   *[]HistoryPoint
	}{
		{"current_val", &h.CurrentHistory},
		{"avg_current_val", &h.AvgCurrentHistory},
		{"voltage_val", &h.VoltageHistory},
		{"inst_power_val", &h.PowerHistory},
	} {
		points, err := s.querySeries(ctx, series.column, cutoff)
		if err != nil {
			return History{}, err
		}
		*series.dest = points
	}
	return h, nil
}

// querySeries reads one column's timestamped values since the cutoff. The
// column name comes from a fixed list above, never from caller input.
func (s *PostgresStore) querySeries(ctx context.Context, column string, cutoff time.Time) ([]HistoryPoint, error) {
	q := fmt.Sprintf(`
		SELECT timestamp, %s
		FROM sensor_data
		WHERE timestamp >= $1
		ORDER BY timestamp ASC`, column)

	rows, err := s.db.QueryContext(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query %s history: %w", column, err)
	}
	defer rows.Close()

	var points []HistoryPoint
	for rows.Next() {
		var p HistoryPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("scan %s history: %w", column, err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// AveragePower returns the mean instantaneous power over the window.
func (s *PostgresStore) AveragePower(ctx context.Context, window time.Duration) (float64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(inst_power_val), 0)
		FROM sensor_data
		WHERE timestamp >= $1`,
		time.Now().Add(-window))

	var avg float64
	if err := row.Scan(&avg); err != nil {
		return 0, fmt.Errorf("query average power: %w", err)
	}
	return avg, nil
}

// AppendActivity records one relay transition.
func (s *PostgresStore) AppendActivity(ctx context.Context, ev ActivityEvent) error {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (relay_id, state, actor, ts)
		VALUES ($1, $2, $3, $4)`,
		ev.Relay, ev.On, ev.Actor, ts)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ActivityEvents returns one relay's transitions since the given time.
func (s *PostgresStore) ActivityEvents(ctx context.Context, relay int, since time.Time) ([]usage.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT state, ts
		FROM activity_log
		WHERE relay_id = $1 AND ts >= $2
		ORDER BY ts ASC`,
		relay, since)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var events []usage.Event
	for rows.Next() {
		var ev usage.Event
		if err := rows.Scan(&ev.On, &ev.At); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
