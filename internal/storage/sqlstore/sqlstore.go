// Package sqlstore implements the storage contract over database/sql. The
// sqlite and postgres backends own connection setup and migrations and
// delegate every query here.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/migration"
	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/storage"
)

// timeLayout is fixed-width UTC so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Queries struct {
	db      *sql.DB
	dialect migration.Dialect
}

func New(db *sql.DB, dialect migration.Dialect) *Queries {
	return &Queries{db: db, dialect: dialect}
}

func (q *Queries) DB() *sql.DB {
	return q.db
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func (q *Queries) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	query = q.dialect.Rebind(query)
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return q.db.ExecContext(ctx, query, args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.dialect.Rebind(query), args...)
}

// --- activities ---

func (q *Queries) AppendActivity(ctx context.Context, ev models.ActivityEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := q.exec(ctx, tx,
		`INSERT INTO activities (id, kind, occurred_at, message) VALUES (?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), formatTime(ev.OccurredAt), ev.Message,
	); err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	if _, err := q.exec(ctx, tx,
		`DELETE FROM activities WHERE seq NOT IN (SELECT seq FROM activities ORDER BY seq DESC LIMIT ?)`,
		constants.MaxActivities,
	); err != nil {
		return fmt.Errorf("failed to trim activities: %w", err)
	}
	return tx.Commit()
}

func (q *Queries) RecentActivities(ctx context.Context, n int) ([]models.ActivityEvent, error) {
	if n <= 0 || n > constants.MaxActivities {
		n = constants.MaxActivities
	}
	rows, err := q.query(ctx,
		`SELECT id, kind, occurred_at, message FROM activities ORDER BY occurred_at DESC, seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return scanActivities(rows)
}

func (q *Queries) AllActivities(ctx context.Context) ([]models.ActivityEvent, error) {
	rows, err := q.query(ctx, `SELECT id, kind, occurred_at, message FROM activities ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return scanActivities(rows)
}

func scanActivities(rows *sql.Rows) ([]models.ActivityEvent, error) {
	defer rows.Close()
	out := []models.ActivityEvent{}
	for rows.Next() {
		var ev models.ActivityEvent
		var kind, occurredAt string
		if err := rows.Scan(&ev.ID, &kind, &occurredAt, &ev.Message); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		t, err := parseTime(occurredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse occurred_at: %w", err)
		}
		ev.Kind = models.ActivityKind(kind)
		ev.OccurredAt = t
		out = append(out, ev)
	}
	return out, rows.Err()
}

// --- alerts ---

func (q *Queries) AppendAlert(ctx context.Context, a models.Alert) error {
	if err := a.Validate(); err != nil {
		return err
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := q.exec(ctx, tx,
		`INSERT INTO alerts (id, kind, message, created_at, is_read) VALUES (?, ?, ?, ?, ?)`,
		a.ID, string(a.Kind), a.Message, formatTime(a.CreatedAt), a.IsRead,
	); err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	if _, err := q.exec(ctx, tx,
		`DELETE FROM alerts WHERE seq NOT IN (SELECT seq FROM alerts ORDER BY seq DESC LIMIT ?)`,
		constants.MaxAlerts,
	); err != nil {
		return fmt.Errorf("failed to trim alerts: %w", err)
	}
	return tx.Commit()
}

func (q *Queries) MarkAlertRead(ctx context.Context, id string) error {
	res, err := q.exec(ctx, nil, `UPDATE alerts SET is_read = ? WHERE id = ?`, true, id)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("alert %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (q *Queries) ClearAlerts(ctx context.Context) error {
	if _, err := q.exec(ctx, nil, `DELETE FROM alerts`); err != nil {
		return fmt.Errorf("failed to clear alerts: %w", err)
	}
	return nil
}

func (q *Queries) RecentAlerts(ctx context.Context, n int) ([]models.Alert, error) {
	if n <= 0 || n > constants.MaxAlerts {
		n = constants.MaxAlerts
	}
	rows, err := q.query(ctx,
		`SELECT id, kind, message, created_at, is_read FROM alerts ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	out := []models.Alert{}
	for rows.Next() {
		var a models.Alert
		var kind, createdAt string
		if err := rows.Scan(&a.ID, &kind, &a.Message, &createdAt, &a.IsRead); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		a.Kind = models.AlertKind(kind)
		a.CreatedAt = t
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- status ---

func (q *Queries) GetStatus(ctx context.Context) (models.StatusSnapshot, error) {
	var data string
	err := q.db.QueryRowContext(ctx, `SELECT data FROM status WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultStatus(), nil
	}
	if err != nil {
		return models.StatusSnapshot{}, fmt.Errorf("failed to get status: %w", err)
	}
	var s models.StatusSnapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return models.StatusSnapshot{}, fmt.Errorf("failed to decode status: %w", err)
	}
	return s, nil
}

func (q *Queries) PutStatus(ctx context.Context, s models.StatusSnapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	_, err = q.exec(ctx, nil, `
		INSERT INTO status (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

// --- settings ---

func (q *Queries) GetSettings(ctx context.Context) (models.Settings, error) {
	rows, err := q.query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	data := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Settings{}, err
		}
		data[key] = value
	}
	if err := rows.Err(); err != nil {
		return models.Settings{}, err
	}
	if len(data) == 0 {
		return models.Settings{}, fmt.Errorf("settings: %w", storage.ErrNotFound)
	}

	settings, err := models.MapToSettings(data)
	if err != nil {
		return models.Settings{}, err
	}
	models.ApplyDefaultSettings(&settings)
	return settings, nil
}

func (q *Queries) SaveSettings(ctx context.Context, settings models.Settings) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range models.SettingsToMap(settings) {
		if _, err := q.exec(ctx, tx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
			key, value,
		); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// EnsureSettings writes the default settings when none are stored yet.
func (q *Queries) EnsureSettings(ctx context.Context) error {
	if _, err := q.GetSettings(ctx); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err := q.SaveSettings(ctx, models.DefaultSettings()); err != nil {
		return fmt.Errorf("failed to save default settings: %w", err)
	}
	return nil
}

// --- relay queue ---

func (q *Queries) EnqueueRelay(ctx context.Context, r models.RelayRequest) error {
	if r.ID == "" {
		return fmt.Errorf("relay request id cannot be empty")
	}
	if r.Status == "" {
		r.Status = models.RelayPending
	}
	_, err := q.exec(ctx, nil, `
		INSERT INTO relay_queue (id, delivery_token, message, category, urgent, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DeliveryToken, r.Message, r.Category, r.Urgent, string(r.Status), r.Error, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue relay request: %w", err)
	}
	return nil
}

func (q *Queries) PendingRelays(ctx context.Context, n int) ([]models.RelayRequest, error) {
	if n <= 0 {
		n = constants.RelayBatchSize
	}
	rows, err := q.query(ctx, `
		SELECT id, delivery_token, message, category, urgent, status, error, created_at, sent_at
		FROM relay_queue WHERE status = ? ORDER BY seq ASC LIMIT ?`,
		string(models.RelayPending), n)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending relays: %w", err)
	}
	return scanRelays(rows)
}

func (q *Queries) RecentRelays(ctx context.Context, n int) ([]models.RelayRequest, error) {
	if n <= 0 {
		n = constants.RelayBatchSize
	}
	rows, err := q.query(ctx, `
		SELECT id, delivery_token, message, category, urgent, status, error, created_at, sent_at
		FROM relay_queue ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list relays: %w", err)
	}
	return scanRelays(rows)
}

// ClaimRelay moves a pending request to sending. Only one caller can claim a
// given request; the rest get storage.ErrRelayClaimed.
func (q *Queries) ClaimRelay(ctx context.Context, id string) error {
	return q.moveRelay(ctx, nil, id, models.RelayPending, models.RelaySending)
}

// ReleaseRelay hands a claimed request back to the queue without an attempt.
func (q *Queries) ReleaseRelay(ctx context.Context, id string) error {
	return q.moveRelay(ctx, nil, id, models.RelaySending, models.RelayPending)
}

func (q *Queries) MarkRelaySent(ctx context.Context, id string, at time.Time) error {
	return q.finishRelay(ctx, id, models.RelaySent, "", &at)
}

func (q *Queries) MarkRelayFailed(ctx context.Context, id string, reason string) error {
	return q.finishRelay(ctx, id, models.RelayError, reason, nil)
}

func (q *Queries) moveRelay(ctx context.Context, tx *sql.Tx, id string, from, to models.RelayStatus) error {
	res, err := q.exec(ctx, tx,
		`UPDATE relay_queue SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update relay request: %w", err)
	}
	return q.relayAffected(ctx, tx, res, id)
}

// finishRelay records the outcome of a claimed request and trims delivered
// and failed requests beyond constants.MaxRelays.
func (q *Queries) finishRelay(ctx context.Context, id string, status models.RelayStatus, reason string, sentAt *time.Time) error {
	var sent any
	if sentAt != nil {
		sent = formatTime(*sentAt)
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := q.exec(ctx, tx,
		`UPDATE relay_queue SET status = ?, error = ?, sent_at = ? WHERE id = ? AND status = ?`,
		string(status), reason, sent, id, string(models.RelaySending),
	)
	if err != nil {
		return fmt.Errorf("failed to update relay request: %w", err)
	}
	if err := q.relayAffected(ctx, tx, res, id); err != nil {
		return err
	}
	if _, err := q.exec(ctx, tx, `
		DELETE FROM relay_queue WHERE status IN (?, ?) AND seq NOT IN (
			SELECT seq FROM relay_queue WHERE status IN (?, ?) ORDER BY seq DESC LIMIT ?)`,
		string(models.RelaySent), string(models.RelayError),
		string(models.RelaySent), string(models.RelayError), constants.MaxRelays,
	); err != nil {
		return fmt.Errorf("failed to trim relay queue: %w", err)
	}
	return tx.Commit()
}

// relayAffected maps a zero-row relay update to ErrNotFound or ErrRelayClaimed.
func (q *Queries) relayAffected(ctx context.Context, tx *sql.Tx, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update relay request: %w", err)
	}
	if n > 0 {
		return nil
	}
	query := q.dialect.Rebind(`SELECT COUNT(*) FROM relay_queue WHERE id = ?`)
	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, id)
	} else {
		row = q.db.QueryRowContext(ctx, query, id)
	}
	var count int
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("failed to look up relay request: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("relay request %s: %w", id, storage.ErrNotFound)
	}
	return fmt.Errorf("relay request %s: %w", id, storage.ErrRelayClaimed)
}

func scanRelays(rows *sql.Rows) ([]models.RelayRequest, error) {
	defer rows.Close()
	out := []models.RelayRequest{}
	for rows.Next() {
		var r models.RelayRequest
		var status, createdAt string
		var sentAt sql.NullString
		if err := rows.Scan(&r.ID, &r.DeliveryToken, &r.Message, &r.Category, &r.Urgent,
			&status, &r.Error, &createdAt, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan relay request: %w", err)
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		r.CreatedAt = t
		r.Status = models.RelayStatus(status)
		if sentAt.Valid {
			st, err := parseTime(sentAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse sent_at: %w", err)
			}
			r.SentAt = &st
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
