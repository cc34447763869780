package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	migrationsGlob    = "sql/migrations/*.sql"
	migrationLockKey  = int64(20240611)
	migrationTimeout  = 5 * time.Second
	migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	migrationsFS embed.FS

	migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationState описывает состояние схемы относительно встроенных миграций.
type MigrationState struct {
	Version int64
	Applied int
	Pending int
}

// Migrator применяет версионированные SQL-миграции под advisory lock,
// чтобы несколько экземпляров сервиса не мигрировали одновременно.
type Migrator struct {
	db   *sql.DB
	fsys fs.FS
}

// NewMigrator создаёт мигратор поверх встроенного набора миграций.
func NewMigrator(store *Store) *Migrator {
	return &Migrator{db: store.DB(), fsys: migrationsFS}
}

// MigrateUp применяет up-миграции; при steps=0 применяются все доступные.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	return NewMigrator(s).Up(ctx, steps)
}

// MigrateDown откатывает миграции; steps<=0 трактуется как один шаг.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	return NewMigrator(s).Down(ctx, steps)
}

// MigrationStatus возвращает текущую версию и количество применённых/ожидающих миграций.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationState, error) {
	if s == nil || s.db == nil {
		return MigrationState{}, errStoreNotInitialized
	}
	return NewMigrator(s).Status(ctx)
}

// Up применяет ещё не применённые миграции по возрастанию версии.
func (m *Migrator) Up(ctx context.Context, steps int) error {
	migrations, err := loadMigrationsFromFS(m.fsys)
	if err != nil {
		return err
	}

	return m.locked(ctx, func(conn *sql.Conn) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		done := 0
		for _, mg := range migrations {
			if _, ok := applied[mg.Version]; ok {
				continue
			}
			if err := runInConnTx(ctx, conn, func(tx *sql.Tx) error {
				if _, err := tx.ExecContext(ctx, mg.UpSQL); err != nil {
					return fmt.Errorf("execute up migration %d_%s: %w", mg.Version, mg.Name, err)
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO schema_migrations (version, name, applied_at)
					VALUES ($1, $2, NOW())
				`, mg.Version, mg.Name); err != nil {
					return fmt.Errorf("record up migration %d_%s: %w", mg.Version, mg.Name, err)
				}
				return nil
			}); err != nil {
				return err
			}

			done++
			if steps > 0 && done >= steps {
				break
			}
		}
		return nil
	})
}

// Down откатывает последние применённые миграции.
func (m *Migrator) Down(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}

	migrations, err := loadMigrationsFromFS(m.fsys)
	if err != nil {
		return err
	}
	byVersion := make(map[int64]migration, len(migrations))
	for _, mg := range migrations {
		byVersion[mg.Version] = mg
	}

	return m.locked(ctx, func(conn *sql.Conn) error {
		applied, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		versions := make([]int64, 0, len(applied))
		for v := range applied {
			versions = append(versions, v)
		}
		sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
		if len(versions) > steps {
			versions = versions[:steps]
		}

		for _, version := range versions {
			mg, ok := byVersion[version]
			if !ok {
				return fmt.Errorf("cannot rollback unknown migration version %d", version)
			}
			if err := runInConnTx(ctx, conn, func(tx *sql.Tx) error {
				if _, err := tx.ExecContext(ctx, mg.DownSQL); err != nil {
					return fmt.Errorf("execute down migration %d_%s: %w", mg.Version, mg.Name, err)
				}
				if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, mg.Version); err != nil {
					return fmt.Errorf("delete migration record %d_%s: %w", mg.Version, mg.Name, err)
				}
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Status сравнивает применённые версии со встроенным набором.
func (m *Migrator) Status(ctx context.Context) (MigrationState, error) {
	migrations, err := loadMigrationsFromFS(m.fsys)
	if err != nil {
		return MigrationState{}, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()

	conn, err := m.db.Conn(queryCtx)
	if err != nil {
		return MigrationState{}, fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(queryCtx, migrationTableDDL); err != nil {
		return MigrationState{}, fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := appliedVersions(queryCtx, conn)
	if err != nil {
		return MigrationState{}, err
	}

	state := MigrationState{Applied: len(applied)}
	for v := range applied {
		if v > state.Version {
			state.Version = v
		}
	}
	for _, mg := range migrations {
		if _, ok := applied[mg.Version]; !ok {
			state.Pending++
		}
	}
	return state, nil
}

// locked выполняет fn на выделенном соединении под pg_advisory_lock.
func (m *Migrator) locked(ctx context.Context, fn func(conn *sql.Conn) error) error {
	if m == nil || m.db == nil {
		return errStoreNotInitialized
	}

	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	return fn(conn)
}

func runInConnTx(ctx context.Context, conn *sql.Conn, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration tx: %w", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]struct{}, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]struct{})
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		result[version] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}

	return result, nil
}

// loadMigrationsFromFS собирает пары up/down по версии и сортирует их.
func loadMigrationsFromFS(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, migrationsGlob)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*migration)
	for _, file := range files {
		base := path.Base(file)
		matches := migrationFilePattern.FindStringSubmatch(base)
		if len(matches) != 4 {
			return nil, fmt.Errorf("invalid migration file name: %s", base)
		}

		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version from %s: %w", base, err)
		}
		name, direction := matches[2], matches[3]

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", file, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		mg, ok := byVersion[version]
		if !ok {
			mg = &migration{Version: version, Name: name}
			byVersion[version] = mg
		} else if mg.Name != name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, mg.Name, name)
		}

		target := &mg.UpSQL
		if direction == "down" {
			target = &mg.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", direction, version)
		}
		*target = body
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, mg := range byVersion {
		if mg.UpSQL == "" || mg.DownSQL == "" {
			return nil, fmt.Errorf("migration %d_%s must have both up and down files", mg.Version, mg.Name)
		}
		migrations = append(migrations, *mg)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	return migrations, nil
}
