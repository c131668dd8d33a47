package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/sonyflake"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a single-file backend for development and small deployments.
type SQLiteStore struct {
	db *sql.DB
	sf *sonyflake.Sonyflake
}

func NewSQLiteStore(ctx context.Context, dsn string, sf *sonyflake.Sonyflake) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = "./chatwire.db"
	}
	db, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	// The sqlite driver is not safe for concurrent writers on one file.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, sf: sf}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		full_name TEXT NOT NULL,
		password TEXT NOT NULL,
		profile_pic TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair
		ON messages (sender_id, receiver_id, created_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) (*User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()

	query := `INSERT INTO users (id, email, full_name, password, profile_pic, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.FullName, u.Password, u.ProfilePic, u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `SELECT id, email, full_name, password, profile_pic, created_at
                           FROM users WHERE email = ?`, email)
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, `SELECT id, email, full_name, password, profile_pic, created_at
                           FROM users WHERE id = ?`, id)
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg any) (*User, error) {
	u := &User{}
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.FullName, &u.Password, &u.ProfilePic, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *SQLiteStore) ListUsersExcept(ctx context.Context, id string) ([]User, error) {
	query := `SELECT id, email, full_name, profile_pic, created_at
              FROM users WHERE id <> ? ORDER BY full_name`
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.ProfilePic, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) UpdateProfilePic(ctx context.Context, id, url string) (*User, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET profile_pic = ? WHERE id = ?`, url, id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) CreateMessage(ctx context.Context, senderID, receiverID, text, image string) (*Message, error) {
	id, err := s.sf.NextID()
	if err != nil {
		return nil, err
	}
	m := &Message{
		ID:         int64(id),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
		CreatedAt:  time.Now().UTC(),
	}

	query := `INSERT INTO messages (id, sender_id, receiver_id, text, image, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		m.ID, m.SenderID, m.ReceiverID, m.Text, m.Image, m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SQLiteStore) MessagesBetween(ctx context.Context, a, b string) ([]Message, error) {
	query := `SELECT id, sender_id, receiver_id, text, image, created_at
              FROM messages
              WHERE (sender_id = ? AND receiver_id = ?)
                 OR (sender_id = ? AND receiver_id = ?)
              ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, a, b, b, a)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
