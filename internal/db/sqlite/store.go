// Package sqlite is the transactional alternative to the flat-file chat
// store. Each chat is one row keyed by id, so a mutation touches a single
// row inside a transaction instead of rewriting the whole collection.
// Selected with STORAGE_BACKEND=sqlite.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rcallen/chatd/internal/db"
	"github.com/rcallen/chatd/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    owner TEXT NOT NULL,
    model TEXT NOT NULL,
    renamed INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    messages TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chats_owner ON chats(owner);`

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	d, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", db.ErrStorage, dbPath, err)
	}
	if _, err := d.Exec(schema); err != nil {
		d.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", db.ErrStorage, err)
	}
	return &Store{db: d}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadAll() ([]models.Chat, error) {
	rows, err := s.db.Query(`SELECT id, name, owner, model, renamed, created_at, messages FROM chats ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: query chats: %v", db.ErrStorage, err)
	}
	defer rows.Close()

	chats := make([]models.Chat, 0)
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan chats: %v", db.ErrStorage, err)
	}
	return chats, nil
}

func (s *Store) SaveAll(chats []models.Chat) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", db.ErrStorage, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chats`); err != nil {
		return fmt.Errorf("%w: clear chats: %v", db.ErrStorage, err)
	}
	for _, chat := range chats {
		if err := insertChat(tx, chat); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", db.ErrStorage, err)
	}
	return nil
}

func (s *Store) FindByID(id string) (models.Chat, error) {
	row := s.db.QueryRow(`SELECT id, name, owner, model, renamed, created_at, messages FROM chats WHERE id = ?`, id)
	chat, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, db.ErrNotFound
	}
	return chat, err
}

func (s *Store) FindByOwner(owner string) ([]models.Chat, error) {
	rows, err := s.db.Query(`SELECT id, name, owner, model, renamed, created_at, messages FROM chats WHERE owner = ? ORDER BY created_at`, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: query chats by owner: %v", db.ErrStorage, err)
	}
	defer rows.Close()

	chats := make([]models.Chat, 0)
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan chats: %v", db.ErrStorage, err)
	}
	return chats, nil
}

func (s *Store) Insert(chat models.Chat) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", db.ErrStorage, err)
	}
	defer tx.Rollback()

	if err := insertChat(tx, chat); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", db.ErrStorage, err)
	}
	return nil
}

func (s *Store) Update(id string, fn func(*models.Chat) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", db.ErrStorage, err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT id, name, owner, model, renamed, created_at, messages FROM chats WHERE id = ?`, id)
	chat, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return db.ErrNotFound
	}
	if err != nil {
		return err
	}

	if err := fn(&chat); err != nil {
		return err
	}

	msgs, err := json.Marshal(chat.Messages)
	if err != nil {
		return fmt.Errorf("%w: marshal messages: %v", db.ErrStorage, err)
	}
	if _, err := tx.Exec(
		`UPDATE chats SET name = ?, model = ?, renamed = ?, messages = ? WHERE id = ?`,
		chat.Name, chat.Model, chat.Renamed, string(msgs), chat.ID,
	); err != nil {
		return fmt.Errorf("%w: update chat: %v", db.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", db.ErrStorage, err)
	}
	return nil
}

func (s *Store) Delete(id, owner string) error {
	if _, err := s.db.Exec(`DELETE FROM chats WHERE id = ? AND owner = ?`, id, owner); err != nil {
		return fmt.Errorf("%w: delete chat: %v", db.ErrStorage, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (models.Chat, error) {
	var chat models.Chat
	var msgs string
	if err := row.Scan(&chat.ID, &chat.Name, &chat.Owner, &chat.Model, &chat.Renamed, &chat.CreatedAt, &msgs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Chat{}, err
		}
		return models.Chat{}, fmt.Errorf("%w: scan chat: %v", db.ErrStorage, err)
	}
	if err := json.Unmarshal([]byte(msgs), &chat.Messages); err != nil {
		return models.Chat{}, fmt.Errorf("%w: parse messages for chat %s: %v", db.ErrStorage, chat.ID, err)
	}
	if chat.Messages == nil {
		chat.Messages = []models.Message{}
	}
	return chat, nil
}

func insertChat(tx *sql.Tx, chat models.Chat) error {
	msgs, err := json.Marshal(chat.Messages)
	if err != nil {
		return fmt.Errorf("%w: marshal messages: %v", db.ErrStorage, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO chats (id, name, owner, model, renamed, created_at, messages) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chat.ID, chat.Name, chat.Owner, chat.Model, chat.Renamed, chat.CreatedAt, string(msgs),
	); err != nil {
		return fmt.Errorf("%w: insert chat: %v", db.ErrStorage, err)
	}
	return nil
}
