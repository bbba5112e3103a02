package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/bentacars/salesbot/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS vehicles (
	sku          TEXT PRIMARY KEY,
	position     INTEGER NOT NULL,
	year         INTEGER NOT NULL DEFAULT 0,
	brand        TEXT NOT NULL DEFAULT '',
	model        TEXT NOT NULL DEFAULT '',
	variant      TEXT NOT NULL DEFAULT '',
	transmission TEXT NOT NULL DEFAULT '',
	fuel_type    TEXT NOT NULL DEFAULT '',
	body_type    TEXT NOT NULL DEFAULT '',
	color        TEXT NOT NULL DEFAULT '',
	mileage      INTEGER NOT NULL DEFAULT 0,
	images       TEXT NOT NULL DEFAULT '[]',
	drive_link   TEXT NOT NULL DEFAULT '',
	video_link   TEXT NOT NULL DEFAULT '',
	srp          REAL NOT NULL DEFAULT 0,
	all_in       REAL NOT NULL DEFAULT 0,
	city         TEXT NOT NULL DEFAULT '',
	province     TEXT NOT NULL DEFAULT '',
	price_status TEXT NOT NULL DEFAULT '',
	updated_at   TEXT NOT NULL DEFAULT '',
	imported_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	sender_id  TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS conversation_turns (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role            TEXT NOT NULL,
	text            TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_vehicles_position ON vehicles(position);
CREATE INDEX IF NOT EXISTS idx_conversations_sender ON conversations(sender_id);
CREATE INDEX IF NOT EXISTS idx_turns_conversation ON conversation_turns(conversation_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertVehicle = `
INSERT INTO vehicles (
	sku, position, year, brand, model, variant, transmission, fuel_type,
	body_type, color, mileage, images, drive_link, video_link, srp, all_in,
	city, province, price_status, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(sku) DO UPDATE SET
	position = excluded.position,
	year = excluded.year, brand = excluded.brand, model = excluded.model,
	variant = excluded.variant, transmission = excluded.transmission,
	fuel_type = excluded.fuel_type, body_type = excluded.body_type,
	color = excluded.color, mileage = excluded.mileage,
	images = excluded.images, drive_link = excluded.drive_link,
	video_link = excluded.video_link, srp = excluded.srp,
	all_in = excluded.all_in, city = excluded.city,
	province = excluded.province, price_status = excluded.price_status,
	updated_at = excluded.updated_at, imported_at = datetime('now')`

// ReplaceVehicles swaps the whole catalog snapshot inside one transaction.
func (s *SQLiteStore) ReplaceVehicles(ctx context.Context, vehicles []model.Vehicle) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin replace")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM vehicles`); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear vehicles")
	}

	n, err := insertVehiclesSQLite(ctx, tx, vehicles, 0)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit replace")
	}
	return n, nil
}

// UpsertVehicles merges rows into the existing snapshot, appending new rows
// after the current highest position.
func (s *SQLiteStore) UpsertVehicles(ctx context.Context, vehicles []model.Vehicle) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	var base int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position)+1, 0) FROM vehicles`).Scan(&base); err != nil {
		return 0, eris.Wrap(err, "sqlite: next position")
	}

	n, err := insertVehiclesSQLite(ctx, tx, vehicles, base)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return n, nil
}

func insertVehiclesSQLite(ctx context.Context, tx *sql.Tx, vehicles []model.Vehicle, base int) (int, error) {
	stmt, err := tx.PrepareContext(ctx, sqliteInsertVehicle)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert vehicle")
	}
	defer stmt.Close() //nolint:errcheck

	for i, v := range vehicles {
		images, err := json.Marshal(v.Images)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal images %s", v.SKU)
		}
		if _, err := stmt.ExecContext(ctx,
			v.SKU, base+i, v.Year, v.Brand, v.Model, v.Variant, v.Transmission,
			v.FuelType, v.BodyType, v.Color, v.Mileage, string(images),
			v.DriveLink, v.VideoLink, v.SRP, v.AllIn, v.City, v.Province,
			v.PriceStatus, v.UpdatedAt,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert vehicle %s", v.SKU)
		}
	}
	return len(vehicles), nil
}

const sqliteSelectVehicles = `
SELECT sku, year, brand, model, variant, transmission, fuel_type, body_type,
	color, mileage, images, drive_link, video_link, srp, all_in, city,
	province, price_status, updated_at
FROM vehicles ORDER BY position`

func (s *SQLiteStore) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectVehicles)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list vehicles")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		var images string
		if err := rows.Scan(
			&v.SKU, &v.Year, &v.Brand, &v.Model, &v.Variant, &v.Transmission,
			&v.FuelType, &v.BodyType, &v.Color, &v.Mileage, &images,
			&v.DriveLink, &v.VideoLink, &v.SRP, &v.AllIn, &v.City,
			&v.Province, &v.PriceStatus, &v.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vehicle")
		}
		if err := json.Unmarshal([]byte(images), &v.Images); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal images %s", v.SKU)
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate vehicles")
}

func (s *SQLiteStore) CountVehicles(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count vehicles")
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, senderID string) (*Conversation, error) {
	conv := &Conversation{
		ID:        uuid.New().String(),
		SenderID:  senderID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, sender_id, created_at) VALUES (?, ?, ?)`,
		conv.ID, conv.SenderID, conv.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert conversation")
	}
	return conv, nil
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, conversationID string, turn model.DialogueTurn) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_turns (conversation_id, role, text) VALUES (?, ?, ?)`,
		conversationID, string(turn.Role), turn.Text,
	)
	return eris.Wrapf(err, "sqlite: append turn %s", conversationID)
}

func (s *SQLiteStore) GetTurns(ctx context.Context, conversationID string) ([]model.DialogueTurn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, text FROM conversation_turns WHERE conversation_id = ? ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get turns %s", conversationID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DialogueTurn
	for rows.Next() {
		var turn model.DialogueTurn
		var role string
		if err := rows.Scan(&role, &turn.Text); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan turn")
		}
		turn.Role = model.DialogueRole(role)
		out = append(out, turn)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate turns")
}
