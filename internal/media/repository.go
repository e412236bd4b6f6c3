package media

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	Create(ctx context.Context, item *Item) error
	Get(ctx context.Context, id string) (*Item, error)
	List(ctx context.Context, t Type) ([]*Item, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, i *Item) error {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO media_items (media_id, type, name, length, thumbnail, object_id, file, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, i.ID, string(i.Type), i.Name, i.Length, nullString(i.Thumbnail), nullString(i.ObjectID), nullString(i.File), i.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Item, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT media_id, type, name, length, thumbnail, object_id, file, created_at
		FROM media_items WHERE media_id = ?
	`, id)

	i, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return i, err
}

// List returns items of type t, or every item when t is empty.
func (r *SQLiteRepository) List(ctx context.Context, t Type) ([]*Item, error) {
	query := `
		SELECT media_id, type, name, length, thumbnail, object_id, file, created_at
		FROM media_items`
	var args []any
	if t != "" {
		query += " WHERE type = ?"
		args = append(args, string(t))
	}
	query += " ORDER BY name, media_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM media_items WHERE media_id = ?", id)
	return err
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media_items").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')
	`, key, value)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*Item, error) {
	var i Item
	var typ, createdAt string
	var thumbnail, objectID, file sql.NullString

	if err := s.Scan(&i.ID, &typ, &i.Name, &i.Length, &thumbnail, &objectID, &file, &createdAt); err != nil {
		return nil, err
	}
	i.Type = Type(typ)
	i.Thumbnail = thumbnail.String
	i.ObjectID = objectID.String
	i.File = file.String
	i.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &i, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
