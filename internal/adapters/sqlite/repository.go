package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rsiTrendBot/internal/domain"
	"rsiTrendBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.SignalRepository and ports.SubscriberRepository interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/rsi_bot.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w: %w", filepath.Dir(dbPath), ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Single writer; the bot's write rate is a few rows per check.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		signal_type TEXT NOT NULL,
		price REAL NOT NULL,
		rsi REAL NOT NULL,
		ema REAL NOT NULL,
		wma REAL NOT NULL,
		signal_time TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS subscribers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL UNIQUE,
		subscribed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS statistics (
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		total_buy1 INTEGER NOT NULL DEFAULT 0,
		total_buy2 INTEGER NOT NULL DEFAULT 0,
		total_sell1 INTEGER NOT NULL DEFAULT 0,
		total_sell2 INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (symbol, timeframe)
	);
	CREATE INDEX IF NOT EXISTS idx_signals_symbol_timeframe_time ON signals (symbol, timeframe, signal_time);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- SignalRepository Implementation ---

// SaveSignal stores an emitted signal. The event must carry an ID.
func (r *Repository) SaveSignal(ctx context.Context, event *domain.SignalEvent) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("signal event without ID: %w", ports.ErrInvalidRequest)
	}
	const query = `
	INSERT INTO signals (id, symbol, timeframe, signal_type, price, rsi, ema, wma, signal_time)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.Key.Symbol, event.Key.Timeframe, string(event.Type), event.Price,
		event.Indicators.RSI, event.Indicators.EMA, event.Indicators.WMA, event.Time.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert signal %s for %s: %w: %w", event.Type, event.Key, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Signal stored", map[string]interface{}{"signalID": event.ID, "key": event.Key.String(), "type": string(event.Type)})
	return nil
}

// RecentSignals retrieves the most recent signals for an instance, newest first.
func (r *Repository) RecentSignals(ctx context.Context, key domain.InstanceKey, limit int) ([]*domain.SignalEvent, error) {
	const query = `
	SELECT id, symbol, timeframe, signal_type, price, rsi, ema, wma, signal_time
	FROM signals
	WHERE symbol = ? AND timeframe = ?
	ORDER BY signal_time DESC, created_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, key.Symbol, key.Timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals for %s: %w: %w", key, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	events := make([]*domain.SignalEvent, 0)
	for rows.Next() {
		ev, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal during RecentSignals: %w: %w", ports.ErrQueryFailed, err)
		}
		events = append(events, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w: %w", ports.ErrQueryFailed, err)
	}
	return events, nil
}

// SaveStatistics upserts the statistics snapshot of an instance.
func (r *Repository) SaveStatistics(ctx context.Context, key domain.InstanceKey, stats domain.Statistics) error {
	const query = `
	INSERT INTO statistics (symbol, timeframe, total_buy1, total_buy2, total_sell1, total_sell2, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (symbol, timeframe) DO UPDATE SET
		total_buy1 = excluded.total_buy1,
		total_buy2 = excluded.total_buy2,
		total_sell1 = excluded.total_sell1,
		total_sell2 = excluded.total_sell2,
		updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		key.Symbol, key.Timeframe, stats.TotalBuy1, stats.TotalBuy2, stats.TotalSell1, stats.TotalSell2, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save statistics for %s: %w: %w", key, ports.ErrQueryFailed, err)
	}
	return nil
}

// LoadStatistics returns the last stored snapshot of an instance.
// ports.ErrNotFound is returned when nothing was stored yet.
func (r *Repository) LoadStatistics(ctx context.Context, key domain.InstanceKey) (domain.Statistics, error) {
	const query = `
	SELECT total_buy1, total_buy2, total_sell1, total_sell2
	FROM statistics WHERE symbol = ? AND timeframe = ?`

	var s domain.Statistics
	err := r.db.QueryRowContext(ctx, query, key.Symbol, key.Timeframe).
		Scan(&s.TotalBuy1, &s.TotalBuy2, &s.TotalSell1, &s.TotalSell2)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Statistics{}, fmt.Errorf("no statistics for %s: %w", key, ports.ErrNotFound)
		}
		return domain.Statistics{}, fmt.Errorf("failed to load statistics for %s: %w: %w", key, ports.ErrQueryFailed, err)
	}
	return s, nil
}

// --- SubscriberRepository Implementation ---

// AddSubscriber subscribes a chat; re-adding keeps the original subscription time.
func (r *Repository) AddSubscriber(ctx context.Context, chatID int64) error {
	const query = `INSERT OR IGNORE INTO subscribers (chat_id, subscribed_at) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, query, chatID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add subscriber %d: %w: %w", chatID, ports.ErrQueryFailed, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.logger.Info(ctx, "Subscriber added", map[string]interface{}{"chatID": chatID})
	}
	return nil
}

// RemoveSubscriber unsubscribes a chat.
func (r *Repository) RemoveSubscriber(ctx context.Context, chatID int64) error {
	const query = `DELETE FROM subscribers WHERE chat_id = ?`
	res, err := r.db.ExecContext(ctx, query, chatID)
	if err != nil {
		return fmt.Errorf("failed to remove subscriber %d: %w: %w", chatID, ports.ErrQueryFailed, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.logger.Info(ctx, "Subscriber removed", map[string]interface{}{"chatID": chatID})
	}
	return nil
}

// ListSubscribers returns all subscribed chats in subscription order.
func (r *Repository) ListSubscribers(ctx context.Context) ([]int64, error) {
	const query = `SELECT chat_id FROM subscribers ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w: %w", ports.ErrQueryFailed, err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriber rows: %w: %w", ports.ErrQueryFailed, err)
	}
	return ids, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSignal scans a row into a domain.SignalEvent struct.
func scanSignal(s scanner) (*domain.SignalEvent, error) {
	ev := &domain.SignalEvent{}
	var signalType string
	err := s.Scan(
		&ev.ID, &ev.Key.Symbol, &ev.Key.Timeframe, &signalType, &ev.Price,
		&ev.Indicators.RSI, &ev.Indicators.EMA, &ev.Indicators.WMA, &ev.Time)
	if err != nil {
		return nil, err
	}
	ev.Type = domain.SignalType(signalType)
	return ev, nil
}
