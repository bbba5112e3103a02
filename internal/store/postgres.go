package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/bentacars/salesbot/internal/db"
	"github.com/bentacars/salesbot/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot per-turn operations.
var preparedStatements = map[string]string{
	"list_vehicles":  pgSelectVehicles,
	"count_vehicles": `SELECT COUNT(*) FROM vehicles`,
	"append_turn":    `INSERT INTO conversation_turns (conversation_id, role, text) VALUES ($1, $2, $3)`,
	"get_turns":      `SELECT role, text FROM conversation_turns WHERE conversation_id = $1 ORDER BY id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
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
	images       TEXT[] NOT NULL DEFAULT '{}',
	drive_link   TEXT NOT NULL DEFAULT '',
	video_link   TEXT NOT NULL DEFAULT '',
	srp          DOUBLE PRECISION NOT NULL DEFAULT 0,
	all_in       DOUBLE PRECISION NOT NULL DEFAULT 0,
	city         TEXT NOT NULL DEFAULT '',
	province     TEXT NOT NULL DEFAULT '',
	price_status TEXT NOT NULL DEFAULT '',
	updated_at   TEXT NOT NULL DEFAULT '',
	imported_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	sender_id  TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversation_turns (
	id              BIGSERIAL PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role            TEXT NOT NULL,
	text            TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_vehicles_position ON vehicles(position);
CREATE INDEX IF NOT EXISTS idx_conversations_sender ON conversations(sender_id);
CREATE INDEX IF NOT EXISTS idx_turns_conversation ON conversation_turns(conversation_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var vehicleColumns = []string{
	"sku", "position", "year", "brand", "model", "variant", "transmission",
	"fuel_type", "body_type", "color", "mileage", "images", "drive_link",
	"video_link", "srp", "all_in", "city", "province", "price_status",
	"updated_at",
}

func vehicleCopyRows(vehicles []model.Vehicle, base int) [][]any {
	rows := make([][]any, len(vehicles))
	for i, v := range vehicles {
		images := v.Images
		if images == nil {
			images = []string{}
		}
		rows[i] = []any{
			v.SKU, base + i, v.Year, v.Brand, v.Model, v.Variant,
			v.Transmission, v.FuelType, v.BodyType, v.Color, v.Mileage,
			images, v.DriveLink, v.VideoLink, v.SRP, v.AllIn, v.City,
			v.Province, v.PriceStatus, v.UpdatedAt,
		}
	}
	return rows
}

// ReplaceVehicles swaps the whole catalog snapshot inside one transaction
// using COPY for the insert leg.
func (s *PostgresStore) ReplaceVehicles(ctx context.Context, vehicles []model.Vehicle) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin replace")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM vehicles`); err != nil {
		return 0, eris.Wrap(err, "postgres: clear vehicles")
	}

	n, err := db.CopyFrom(ctx, tx, "vehicles", vehicleColumns, vehicleCopyRows(vehicles, 0))
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit replace")
	}
	return int(n), nil
}

const pgUpsertVehicle = `
INSERT INTO vehicles (
	sku, position, year, brand, model, variant, transmission, fuel_type,
	body_type, color, mileage, images, drive_link, video_link, srp, all_in,
	city, province, price_status, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
ON CONFLICT (sku) DO UPDATE SET
	position = EXCLUDED.position, year = EXCLUDED.year,
	brand = EXCLUDED.brand, model = EXCLUDED.model,
	variant = EXCLUDED.variant, transmission = EXCLUDED.transmission,
	fuel_type = EXCLUDED.fuel_type, body_type = EXCLUDED.body_type,
	color = EXCLUDED.color, mileage = EXCLUDED.mileage,
	images = EXCLUDED.images, drive_link = EXCLUDED.drive_link,
	video_link = EXCLUDED.video_link, srp = EXCLUDED.srp,
	all_in = EXCLUDED.all_in, city = EXCLUDED.city,
	province = EXCLUDED.province, price_status = EXCLUDED.price_status,
	updated_at = EXCLUDED.updated_at, imported_at = now()`

// UpsertVehicles merges rows into the existing snapshot, appending new rows
// after the current highest position.
func (s *PostgresStore) UpsertVehicles(ctx context.Context, vehicles []model.Vehicle) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin upsert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var base int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(position)+1, 0) FROM vehicles`).Scan(&base); err != nil {
		return 0, eris.Wrap(err, "postgres: next position")
	}

	for _, row := range vehicleCopyRows(vehicles, base) {
		if _, err := tx.Exec(ctx, pgUpsertVehicle, row...); err != nil {
			return 0, eris.Wrapf(err, "postgres: upsert vehicle %v", row[0])
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit upsert")
	}
	return len(vehicles), nil
}

const pgSelectVehicles = `
SELECT sku, year, brand, model, variant, transmission, fuel_type, body_type,
	color, mileage, images, drive_link, video_link, srp, all_in, city,
	province, price_status, updated_at
FROM vehicles ORDER BY position`

func (s *PostgresStore) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := s.pool.Query(ctx, pgSelectVehicles)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list vehicles")
	}
	defer rows.Close()

	var out []model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(
			&v.SKU, &v.Year, &v.Brand, &v.Model, &v.Variant, &v.Transmission,
			&v.FuelType, &v.BodyType, &v.Color, &v.Mileage, &v.Images,
			&v.DriveLink, &v.VideoLink, &v.SRP, &v.AllIn, &v.City,
			&v.Province, &v.PriceStatus, &v.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vehicle")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate vehicles")
}

func (s *PostgresStore) CountVehicles(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count vehicles")
}

func (s *PostgresStore) CreateConversation(ctx context.Context, senderID string) (*Conversation, error) {
	conv := &Conversation{
		ID:        uuid.New().String(),
		SenderID:  senderID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, sender_id, created_at) VALUES ($1, $2, $3)`,
		conv.ID, conv.SenderID, conv.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert conversation")
	}
	return conv, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, conversationID string, turn model.DialogueTurn) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_turns (conversation_id, role, text) VALUES ($1, $2, $3)`,
		conversationID, string(turn.Role), turn.Text,
	)
	return eris.Wrapf(err, "postgres: append turn %s", conversationID)
}

func (s *PostgresStore) GetTurns(ctx context.Context, conversationID string) ([]model.DialogueTurn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, text FROM conversation_turns WHERE conversation_id = $1 ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get turns %s", conversationID)
	}
	defer rows.Close()

	var out []model.DialogueTurn
	for rows.Next() {
		var turn model.DialogueTurn
		var role string
		if err := rows.Scan(&role, &turn.Text); err != nil {
			return nil, eris.Wrap(err, "postgres: scan turn")
		}
		turn.Role = model.DialogueRole(role)
		out = append(out, turn)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate turns")
}
