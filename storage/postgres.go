package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/danielsdavidyg1-62/Time-Bank-FHE/ledger"
)

// PostgresStore implements ledger.Store with PostgreSQL persistence.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger_meta (
		id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		owner VARCHAR(128) NOT NULL,
		paused BOOLEAN NOT NULL,
		cooldown_ns BIGINT NOT NULL,
		current_batch_id BIGINT NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS providers (
		account VARCHAR(128) PRIMARY KEY,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS cooldowns (
		account VARCHAR(128) NOT NULL,
		action_class VARCHAR(32) NOT NULL,
		last_action TIMESTAMP WITH TIME ZONE NOT NULL,
		PRIMARY KEY (account, action_class)
	);

	CREATE TABLE IF NOT EXISTS batches (
		id BIGINT PRIMARY KEY,
		closed BOOLEAN NOT NULL,
		total_deposited BYTEA,
		total_withdrawn BYTEA,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS disclosure_requests (
		id BIGINT PRIMARY KEY,
		batch_id BIGINT NOT NULL,
		commitment BYTEA NOT NULL,
		processed BOOLEAN NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_requests_batch ON disclosure_requests(batch_id);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveMeta upserts the single global state row.
func (s *PostgresStore) SaveMeta(meta ledger.Meta) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
	INSERT INTO ledger_meta (id, owner, paused, cooldown_ns, current_batch_id, updated_at)
	VALUES (1, $1, $2, $3, $4, NOW())
	ON CONFLICT (id) DO UPDATE SET
		owner = EXCLUDED.owner,
		paused = EXCLUDED.paused,
		cooldown_ns = EXCLUDED.cooldown_ns,
		current_batch_id = EXCLUDED.current_batch_id,
		updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query,
		string(meta.Owner), meta.Paused, meta.Cooldown.Nanoseconds(), int64(meta.CurrentBatchID))
	return err
}

// SaveProvider inserts or deletes a provider row.
func (s *PostgresStore) SaveProvider(account ledger.Address, isProvider bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if isProvider {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO providers (account) VALUES ($1) ON CONFLICT (account) DO NOTHING`,
			string(account))
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM providers WHERE account = $1`, string(account))
	return err
}

// SaveCooldown upserts a cooldown record.
func (s *PostgresStore) SaveCooldown(entry ledger.CooldownEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
	INSERT INTO cooldowns (account, action_class, last_action)
	VALUES ($1, $2, $3)
	ON CONFLICT (account, action_class) DO UPDATE SET last_action = EXCLUDED.last_action
	`
	_, err := s.db.ExecContext(ctx, query, string(entry.Account), string(entry.Class), entry.Last)
	return err
}

// SaveBatch upserts a batch record.
func (s *PostgresStore) SaveBatch(batch ledger.BatchRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
	INSERT INTO batches (id, closed, total_deposited, total_withdrawn, updated_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (id) DO UPDATE SET
		closed = EXCLUDED.closed,
		total_deposited = EXCLUDED.total_deposited,
		total_withdrawn = EXCLUDED.total_withdrawn,
		updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query,
		int64(batch.ID), batch.Closed, batch.TotalDeposited.Bytes(), batch.TotalWithdrawn.Bytes())
	return err
}

// SaveDisclosureRequest upserts a disclosure request record.
func (s *PostgresStore) SaveDisclosureRequest(request ledger.DisclosureRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
	INSERT INTO disclosure_requests (id, batch_id, commitment, processed, updated_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (id) DO UPDATE SET
		processed = EXCLUDED.processed,
		updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query,
		int64(request.ID), int64(request.BatchID), request.Commitment[:], request.Processed)
	return err
}

// Load reads the full snapshot. Returns nil when no meta row exists yet.
func (s *PostgresStore) Load() (*ledger.Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		owner      string
		paused     bool
		cooldownNS int64
		currentID  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT owner, paused, cooldown_ns, current_batch_id FROM ledger_meta WHERE id = 1`).
		Scan(&owner, &paused, &cooldownNS, &currentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading meta: %w", err)
	}

	snapshot := &ledger.Snapshot{
		Meta: ledger.Meta{
			Owner:          ledger.Address(owner),
			Paused:         paused,
			Cooldown:       time.Duration(cooldownNS),
			CurrentBatchID: uint64(currentID),
		},
	}

	if err := s.loadProviders(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := s.loadCooldowns(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := s.loadBatches(ctx, snapshot); err != nil {
		return nil, err
	}
	if err := s.loadRequests(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *PostgresStore) loadProviders(ctx context.Context, snapshot *ledger.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `SELECT account FROM providers`)
	if err != nil {
		return fmt.Errorf("loading providers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return fmt.Errorf("scanning provider row: %w", err)
		}
		snapshot.Providers = append(snapshot.Providers, ledger.Address(account))
	}
	return rows.Err()
}

func (s *PostgresStore) loadCooldowns(ctx context.Context, snapshot *ledger.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `SELECT account, action_class, last_action FROM cooldowns`)
	if err != nil {
		return fmt.Errorf("loading cooldowns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			account string
			class   string
			last    time.Time
		)
		if err := rows.Scan(&account, &class, &last); err != nil {
			return fmt.Errorf("scanning cooldown row: %w", err)
		}
		snapshot.Cooldowns = append(snapshot.Cooldowns, ledger.CooldownEntry{
			Account: ledger.Address(account),
			Class:   ledger.ActionClass(class),
			Last:    last,
		})
	}
	return rows.Err()
}

func (s *PostgresStore) loadBatches(ctx context.Context, snapshot *ledger.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, closed, total_deposited, total_withdrawn FROM batches`)
	if err != nil {
		return fmt.Errorf("loading batches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                   int64
			closed               bool
			deposited, withdrawn []byte
		)
		if err := rows.Scan(&id, &closed, &deposited, &withdrawn); err != nil {
			return fmt.Errorf("scanning batch row: %w", err)
		}
		snapshot.Batches = append(snapshot.Batches, ledger.BatchRecord{
			ID:             uint64(id),
			Closed:         closed,
			TotalDeposited: deposited,
			TotalWithdrawn: withdrawn,
		})
	}
	return rows.Err()
}

func (s *PostgresStore) loadRequests(ctx context.Context, snapshot *ledger.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, batch_id, commitment, processed FROM disclosure_requests`)
	if err != nil {
		return fmt.Errorf("loading disclosure requests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, batchID int64
			commitment  []byte
			processed   bool
		)
		if err := rows.Scan(&id, &batchID, &commitment, &processed); err != nil {
			return fmt.Errorf("scanning request row: %w", err)
		}
		record := ledger.DisclosureRecord{
			ID:        uint64(id),
			BatchID:   uint64(batchID),
			Processed: processed,
		}
		copy(record.Commitment[:], commitment)
		snapshot.Requests = append(snapshot.Requests, record)
	}
	return rows.Err()
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
