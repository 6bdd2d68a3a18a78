package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RichardoC/chat-relay/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS messages_chat_order ON messages(chat_id, created_at, id);`

type Database struct {
	db *sql.DB
}

// New opens (creating if needed) the SQLite database at dbPath. Foreign keys
// are switched on per connection so deleting a chat cascades to its messages.
func New(dbPath string) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) ListChats(ctx context.Context) ([]models.ChatSummary, error) {
	query := `
        SELECT id, title, updated_at
        FROM chats
        ORDER BY updated_at DESC, id ASC`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]models.ChatSummary, 0)
	for rows.Next() {
		var c models.ChatSummary
		if err := rows.Scan(&c.ID, &c.Title, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// CreateChat stores the chat row and its initial messages together.
func (d *Database) CreateChat(ctx context.Context, chat *models.Chat) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO chats (id, title, updated_at)
        VALUES (?, ?, ?)`, chat.ID, chat.Title, chat.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert chat: %w", err)
	}

	if err := insertMessages(ctx, tx, chat.ID, chat.Messages); err != nil {
		return err
	}

	return tx.Commit()
}

func (d *Database) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	chat := &models.Chat{}
	err := d.db.QueryRowContext(ctx, `
        SELECT id, title, updated_at
        FROM chats
        WHERE id = ?`, id).Scan(&chat.ID, &chat.Title, &chat.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, `
        SELECT role, content, created_at
        FROM messages
        WHERE chat_id = ?
        ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	chat.Messages = make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		chat.Messages = append(chat.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return chat, nil
}

func (d *Database) RenameChat(ctx context.Context, id, title string, at time.Time) error {
	res, err := d.db.ExecContext(ctx,
		"UPDATE chats SET title = ?, updated_at = ? WHERE id = ?", title, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to rename chat: %w", err)
	}
	return mustAffect(res)
}

func (d *Database) DeleteChat(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return mustAffect(res)
}

// AppendMessages adds msgs to the end of the chat's log, optionally replaces
// its title, and moves updated_at to at. All of it commits or none of it does.
func (d *Database) AppendMessages(ctx context.Context, id string, msgs []models.Message, title *string, at time.Time) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var res sql.Result
	if title != nil {
		res, err = tx.ExecContext(ctx,
			"UPDATE chats SET title = ?, updated_at = ? WHERE id = ?", *title, at.UTC(), id)
	} else {
		res, err = tx.ExecContext(ctx,
			"UPDATE chats SET updated_at = ? WHERE id = ?", at.UTC(), id)
	}
	if err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	if err := mustAffect(res); err != nil {
		return err
	}

	if err := insertMessages(ctx, tx, id, msgs); err != nil {
		return err
	}

	return tx.Commit()
}

func insertMessages(ctx context.Context, tx *sql.Tx, chatID string, msgs []models.Message) error {
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO messages (chat_id, role, content, created_at)
        VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range msgs {
		if _, err := stmt.ExecContext(ctx, chatID, m.Role, m.Content, m.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}
	return nil
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
