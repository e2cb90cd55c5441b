package main

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection. It stores out-of-round
// aggregates only: accounts, lifetime stats, round history, analytics
// events. Live room state is never persisted.
type DB struct {
	conn *sql.DB
}

// AccountRow represents an account record
type AccountRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// StatsRow represents lifetime stats for an account
type StatsRow struct {
	AccountID int64
	Kills     int
	Deaths    int
	Wins      int
	Rounds    int
}

// RoundPlayerRow represents one player's participation in a round
type RoundPlayerRow struct {
	Name      string
	AccountID int64
	Kills     int
	Deaths    int
	LivesLeft int
	Won       bool
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE COLLATE NOCASE,
			pass_hash TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS stats (
			account_id INTEGER PRIMARY KEY REFERENCES accounts(id),
			kills INTEGER NOT NULL DEFAULT 0,
			deaths INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			rounds INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			winner_name TEXT NOT NULL,
			duration_s REAL NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS round_players (
			round_id INTEGER NOT NULL REFERENCES rounds(id),
			name TEXT NOT NULL,
			account_id INTEGER NOT NULL DEFAULT 0,
			kills INTEGER NOT NULL,
			deaths INTEGER NOT NULL,
			lives_left INTEGER NOT NULL,
			won INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			account_id INTEGER NOT NULL DEFAULT 0,
			room_id TEXT NOT NULL DEFAULT '',
			player_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_room ON rounds(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(type)`,
	}
	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetSetting returns a settings value, or "" if absent
func (db *DB) GetSetting(key string) string {
	var value string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

// SetSetting upserts a settings value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// CreateAccount inserts an account and its empty stats row
func (db *DB) CreateAccount(username, passHash string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO accounts (username, pass_hash) VALUES (?, ?)",
		username, passHash)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := db.conn.Exec("INSERT INTO stats (account_id) VALUES (?)", id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetAccountByUsername returns an account record or nil
func (db *DB) GetAccountByUsername(username string) (*AccountRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM accounts WHERE username = ?",
		username)
	var a AccountRow
	if err := row.Scan(&a.ID, &a.Username, &a.PassHash, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// GetAccountByID returns an account record or nil
func (db *DB) GetAccountByID(id int64) (*AccountRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM accounts WHERE id = ?", id)
	var a AccountRow
	if err := row.Scan(&a.ID, &a.Username, &a.PassHash, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// GetStats returns lifetime stats for an account, or nil
func (db *DB) GetStats(accountID int64) (*StatsRow, error) {
	row := db.conn.QueryRow(
		"SELECT account_id, kills, deaths, wins, rounds FROM stats WHERE account_id = ?",
		accountID)
	var s StatsRow
	if err := row.Scan(&s.AccountID, &s.Kills, &s.Deaths, &s.Wins, &s.Rounds); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// AddStats accumulates round results into lifetime stats
func (db *DB) AddStats(accountID int64, kills, deaths, wins int) error {
	_, err := db.conn.Exec(
		`UPDATE stats SET kills = kills + ?, deaths = deaths + ?, wins = wins + ?, rounds = rounds + 1
		 WHERE account_id = ?`,
		kills, deaths, wins, accountID)
	return err
}

// RecordRound writes the round summary and its participant rows
func (db *DB) RecordRound(roomID string, round int, winnerName string, duration time.Duration, players []RoundPlayerRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO rounds (room_id, round, winner_name, duration_s) VALUES (?, ?, ?, ?)",
		roomID, round, winnerName, duration.Seconds())
	if err != nil {
		return err
	}
	roundID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, p := range players {
		_, err := tx.Exec(
			`INSERT INTO round_players (round_id, name, account_id, kills, deaths, lives_left, won)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			roundID, p.Name, p.AccountID, p.Kills, p.Deaths, p.LivesLeft, boolToInt(p.Won))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertEvents writes a batch of analytics events in one transaction
func (db *DB) InsertEvents(events []AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (type, account_id, room_id, player_id, created_at) VALUES (?, ?, ?, ?, ?)",
			e.Type, e.AccountID, e.RoomID, e.PlayerID, e.Timestamp)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
