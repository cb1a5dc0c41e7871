package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"hisaab/internal/core"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; sqlite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite store ready", "db_path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return dbErr(err)
	}
	return nil
}

func dbErr(err error) error {
	return fmt.Errorf("%w: %v", core.ErrStorage, err)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

func toNanos(t time.Time) int64   { return t.UTC().UnixNano() }
func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const hisaabColumns = `id, title, label, content, encrypted, secret_hash, owner_id, room_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHisaab(row rowScanner) (core.Hisaab, error) {
	var (
		h                    core.Hisaab
		content              string
		encrypted            int
		createdAt, updatedAt int64
	)
	if err := row.Scan(&h.ID, &h.Title, &h.Label, &content, &encrypted, &h.SecretHash,
		&h.OwnerID, &h.RoomID, &createdAt, &updatedAt); err != nil {
		return core.Hisaab{}, err
	}
	if err := json.Unmarshal([]byte(content), &h.Content); err != nil {
		return core.Hisaab{}, fmt.Errorf("decode content of %s: %w", h.ID, err)
	}
	h.Encrypted = encrypted != 0
	h.CreatedAt = fromNanos(createdAt)
	h.UpdatedAt = fromNanos(updatedAt)
	return h, nil
}

func encodeContent(items []core.LineItem) (string, error) {
	if items == nil {
		items = []core.LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}
	return string(b), nil
}

func orderBy(sort string) string {
	switch sort {
	case SortDateAsc:
		return "created_at ASC, rowid ASC"
	case SortTitleAsc:
		return "title ASC, rowid ASC"
	case SortTitleDesc:
		return "title DESC, rowid ASC"
	default:
		return "created_at DESC, rowid ASC"
	}
}

func (r *SQLiteRepository) Find(ctx context.Context, f Filter) ([]core.Hisaab, error) {
	var (
		where = []string{"owner_id = ?"}
		args  = []any{f.OwnerID}
	)
	if f.TitleContains != "" {
		where = append(where, "instr(lower(title), lower(?)) > 0")
		args = append(args, f.TitleContains)
	}
	if f.CreatedOn != nil {
		start, end := DayRange(*f.CreatedOn)
		where = append(where, "created_at >= ? AND created_at < ?")
		args = append(args, toNanos(start), toNanos(end))
	}

	query := "SELECT " + hisaabColumns + " FROM hisaabs WHERE " +
		strings.Join(where, " AND ") + " ORDER BY " + orderBy(f.Sort)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	out := make([]core.Hisaab, 0)
	for rows.Next() {
		h, err := scanHisaab(rows)
		if err != nil {
			return nil, dbErr(err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return out, nil
}

func (r *SQLiteRepository) OwnerIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT owner_id FROM hisaabs ORDER BY owner_id")
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbErr(err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return out, nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (core.Hisaab, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+hisaabColumns+" FROM hisaabs WHERE id = ?", id)
	h, err := scanHisaab(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Hisaab{}, ErrNotFound
	}
	if err != nil {
		return core.Hisaab{}, dbErr(err)
	}
	return h, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, h core.Hisaab) (core.Hisaab, error) {
	content, err := encodeContent(h.Content)
	if err != nil {
		return core.Hisaab{}, dbErr(err)
	}
	h.ID = uuid.NewString()
	h.CreatedAt = r.now()
	h.UpdatedAt = h.CreatedAt

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO hisaabs ("+hisaabColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		h.ID, h.Title, h.Label, content, boolToInt(h.Encrypted), h.SecretHash,
		h.OwnerID, h.RoomID, toNanos(h.CreatedAt), toNanos(h.UpdatedAt))
	if err != nil {
		return core.Hisaab{}, dbErr(err)
	}

	slog.DebugContext(ctx, "Hisaab saved to SQLite", "hisaab_id", h.ID, "owner_id", h.OwnerID)
	return h, nil
}

// Update rewrites the whole row inside a transaction so the read of the
// current document and the write cannot interleave with another update.
func (r *SQLiteRepository) Update(ctx context.Context, id string, p Patch) (core.Hisaab, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Hisaab{}, dbErr(err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT "+hisaabColumns+" FROM hisaabs WHERE id = ? AND owner_id = ?", id, p.OwnerID)
	current, err := scanHisaab(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Hisaab{}, ErrNotFound
	}
	if err != nil {
		return core.Hisaab{}, dbErr(err)
	}

	h := p.Apply(current)
	h.UpdatedAt = r.now()
	content, err := encodeContent(h.Content)
	if err != nil {
		return core.Hisaab{}, dbErr(err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE hisaabs
		SET title = ?, label = ?, content = ?, encrypted = ?, secret_hash = ?, room_id = ?, updated_at = ?
		WHERE id = ?`,
		h.Title, h.Label, content, boolToInt(h.Encrypted), h.SecretHash, h.RoomID, toNanos(h.UpdatedAt), id)
	if err != nil {
		return core.Hisaab{}, dbErr(err)
	}
	if err := tx.Commit(); err != nil {
		return core.Hisaab{}, dbErr(err)
	}
	return h, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string, ownerID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM hisaabs WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbErr(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) members(ctx context.Context, roomID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id FROM room_members WHERE room_id = ? ORDER BY position", roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListRooms(ctx context.Context) ([]core.Room, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, secret_hash, created_at FROM rooms ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, dbErr(err)
	}
	var rooms []core.Room
	for rows.Next() {
		var (
			room      core.Room
			createdAt int64
		)
		if err := rows.Scan(&room.ID, &room.Name, &room.Description, &room.SecretHash, &createdAt); err != nil {
			rows.Close()
			return nil, dbErr(err)
		}
		room.CreatedAt = fromNanos(createdAt)
		rooms = append(rooms, room)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, dbErr(err)
	}

	// Members are loaded after the cursor is closed: the pool has a single
	// connection.
	out := make([]core.Room, 0, len(rooms))
	for _, room := range rooms {
		if room.Members, err = r.members(ctx, room.ID); err != nil {
			return nil, dbErr(err)
		}
		out = append(out, room)
	}
	return out, nil
}

func (r *SQLiteRepository) FindRoom(ctx context.Context, id string) (core.Room, error) {
	var (
		room      core.Room
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, description, secret_hash, created_at FROM rooms WHERE id = ?", id).
		Scan(&room.ID, &room.Name, &room.Description, &room.SecretHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Room{}, ErrNotFound
	}
	if err != nil {
		return core.Room{}, dbErr(err)
	}
	room.CreatedAt = fromNanos(createdAt)
	if room.Members, err = r.members(ctx, id); err != nil {
		return core.Room{}, dbErr(err)
	}
	return room, nil
}

func (r *SQLiteRepository) SaveRoom(ctx context.Context, room core.Room) (core.Room, error) {
	room.ID = uuid.NewString()
	room.CreatedAt = r.now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Room{}, dbErr(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO rooms (id, name, description, secret_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		room.ID, room.Name, room.Description, room.SecretHash, toNanos(room.CreatedAt)); err != nil {
		return core.Room{}, dbErr(err)
	}
	members := make([]string, 0, len(room.Members))
	for _, m := range room.Members {
		if containsString(members, m) {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO room_members (room_id, user_id, position) VALUES (?, ?, ?)",
			room.ID, m, len(members)); err != nil {
			return core.Room{}, dbErr(err)
		}
		members = append(members, m)
	}
	if err := tx.Commit(); err != nil {
		return core.Room{}, dbErr(err)
	}
	room.Members = members
	return room, nil
}

func (r *SQLiteRepository) AddMember(ctx context.Context, roomID, userID string) (core.Room, error) {
	room, err := r.FindRoom(ctx, roomID)
	if err != nil {
		return core.Room{}, err
	}
	if room.IsMember(userID) {
		return room, nil
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO room_members (room_id, user_id, position)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM room_members WHERE room_id = ?))
		ON CONFLICT (room_id, user_id) DO NOTHING`, roomID, userID, roomID)
	if err != nil {
		return core.Room{}, dbErr(err)
	}
	room.Members = append(room.Members, userID)
	return room, nil
}

func (r *SQLiteRepository) SaveUser(ctx context.Context, u core.User) (core.User, error) {
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = r.now()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.Username, u.Email, u.PasswordHash, toNanos(u.CreatedAt))
	if isUniqueViolation(err) {
		return core.User{}, core.ErrConflict
	}
	if err != nil {
		return core.User{}, dbErr(err)
	}
	return u, nil
}

func (r *SQLiteRepository) findUser(ctx context.Context, where string, arg any) (core.User, error) {
	var (
		u         core.User
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, created_at FROM users WHERE "+where+" = ?", arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, dbErr(err)
	}
	u.CreatedAt = fromNanos(createdAt)
	return u, nil
}

func (r *SQLiteRepository) FindUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.findUser(ctx, "email", strings.ToLower(email))
}

func (r *SQLiteRepository) FindUser(ctx context.Context, id string) (core.User, error) {
	return r.findUser(ctx, "id", id)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var _ Store = (*SQLiteRepository)(nil)

// SetClock replaces the time source used for created and updated stamps.
func (r *SQLiteRepository) SetClock(now func() time.Time) { r.now = now }
