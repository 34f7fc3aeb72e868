package db

import (
	"database/sql"
	"errors"
	"time"

	"duochat/models"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var ErrNoRows = errors.New("no rows found")

type DB struct {
	conn *sql.DB
}

func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			login TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender TEXT NOT NULL,
			receiver TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp, id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// User methods
func (db *DB) CreateUser(login, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		"INSERT INTO users (login, password) VALUES (?, ?)",
		login, string(hashed),
	)
	return err
}

func (db *DB) AuthenticateUser(login, password string) (bool, error) {
	var hashedPassword string
	err := db.conn.QueryRow("SELECT password FROM users WHERE login = ?", login).Scan(&hashedPassword)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil, nil
}

func (db *DB) UserExists(login string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users WHERE login = ?", login).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Message methods

// AppendMessage stores a message with a server-assigned timestamp and
// returns the assigned row id. The log is append-only: there is no update
// or delete path for messages.
func (db *DB) AppendMessage(sender, receiver, text string, timestamp time.Time) (int64, error) {
	result, err := db.conn.Exec(
		"INSERT INTO messages (sender, receiver, text, timestamp) VALUES (?, ?, ?, ?)",
		sender, receiver, text, timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// AllMessages returns the entire message collection ordered by timestamp
// ascending, row id as tiebreak. Subscribers receive this unfiltered:
// participant filtering is a client-side concern.
func (db *DB) AllMessages() ([]models.Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, sender, receiver, text, timestamp FROM messages ORDER BY timestamp ASC, id ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var timestampStr string
		if err := rows.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Text, &timestampStr); err != nil {
			return nil, err
		}

		timestamp, err := time.Parse(time.RFC3339, timestampStr)
		if err != nil {
			return nil, err
		}
		m.Timestamp = timestamp

		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// MessageCount returns the size of the message log.
func (db *DB) MessageCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count)
	return count, err
}
