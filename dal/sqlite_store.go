package dal

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"wx_herald/shared"
)

const createKvTable = `CREATE TABLE IF NOT EXISTS kv_entries (
	key TEXT NOT NULL PRIMARY KEY,
	val BLOB NOT NULL,
	expires_at INTEGER NULL
);
CREATE INDEX IF NOT EXISTS idx_kv_entries_expires ON kv_entries(expires_at);`

// sqliteStore is the durable IStore implementation.
type sqliteStore struct {
	logger shared.ILogger
	db     *sql.DB
	muDb   sync.RWMutex
}

func NewSqliteStore(cfg *shared.Config, logger shared.ILogger) IStore {

	// https://phiresky.github.io/blog/2020/sqlite-performance-tuning/
	// _synchronous=1 is "normal"
	cstr := "file:%s?cache=shared&mode=rwc&_journal_mode=WAL&_synchronous=1&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", fmt.Sprintf(cstr, cfg.DbFile))
	if err != nil {
		logger.Errorf("Failed to open/create DB file: %s: %v", cfg.DbFile, err)
		panic(err)
	}
	if _, err = db.Exec(createKvTable); err != nil {
		logger.Errorf("Failed to create kv_entries table: %v", err)
		panic(err)
	}
	return &sqliteStore{logger: logger, db: db}
}

func (st *sqliteStore) Get(key string) ([]byte, error) {

	st.muDb.RLock()
	defer st.muDb.RUnlock()

	row := st.db.QueryRow(`SELECT val, expires_at FROM kv_entries WHERE key=?`, key)
	var val []byte
	var expiresAt sql.NullInt64
	if err := row.Scan(&val, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if expiresAt.Valid && expiresAt.Int64 <= time.Now().Unix() {
		// Expired entries are reaped lazily on read
		go st.deleteExpired(key)
		return nil, nil
	}
	return val, nil
}

func (st *sqliteStore) Put(key string, value []byte, ttl time.Duration) error {

	st.muDb.Lock()
	defer st.muDb.Unlock()

	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: time.Now().Add(ttl).Unix(), Valid: true}
	}
	_, err := st.db.Exec(
		`INSERT INTO kv_entries (key, val, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET val=excluded.val, expires_at=excluded.expires_at`,
		key, value, expiresAt)
	return err
}

func (st *sqliteStore) Delete(key string) error {

	st.muDb.Lock()
	defer st.muDb.Unlock()

	_, err := st.db.Exec(`DELETE FROM kv_entries WHERE key=?`, key)
	return err
}

func (st *sqliteStore) ListByPrefix(prefix string) ([]string, error) {

	st.muDb.RLock()
	defer st.muDb.RUnlock()

	rows, err := st.db.Query(
		`SELECT key FROM kv_entries
		 WHERE key >= ? AND key < ? AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY key`,
		prefix, prefix+"\xff", time.Now().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (st *sqliteStore) deleteExpired(key string) {
	if err := st.Delete(key); err != nil {
		st.logger.Warnf("Failed to reap expired entry %s: %v", key, err)
	}
}
