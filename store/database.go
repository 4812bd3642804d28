package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/clause"
)

// Entry is one key in a Postgres-backed keyspace. A NULL ExpiresAt means
// the key never expires.
type Entry struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	ExpiresAt *time.Time `gorm:"index"`
}

func (Entry) TableName() string {
	return "kv_entries"
}

// DatabaseStore keeps keys in a single Postgres table. Rows past their
// expiry are treated as missing but not removed.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore connects to the database described by dsn and creates
// the table if it does not exist yet.
func NewDatabaseStore(ctx context.Context, dsn string) (*DatabaseStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-create table if needed
	if err := db.WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return newDatabaseStore(db), nil
}

func newDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db, now: time.Now}
}

// Keys matches the glob against every live row using a Postgres regular
// expression.
func (ds *DatabaseStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	re, err := globToRegexp(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	var keys []string
	err = ds.db.WithContext(ctx).
		Model(&Entry{}).
		Where("key ~ ?", re).
		Where("expires_at IS NULL OR expires_at > ?", ds.now()).
		Pluck("key", &keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (ds *DatabaseStore) TTL(ctx context.Context, key string) (int64, error) {
	var entry Entry
	err := ds.db.WithContext(ctx).Where("key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KeyMissing, nil
	}
	if err != nil {
		return 0, err
	}

	if entry.ExpiresAt == nil {
		return NoExpiry, nil
	}
	remaining := entry.ExpiresAt.Sub(ds.now())
	if remaining <= 0 {
		return KeyMissing, nil
	}
	return int64((remaining + time.Second/2) / time.Second), nil
}

func (ds *DatabaseStore) Delete(ctx context.Context, key string) error {
	return ds.db.WithContext(ctx).Delete(&Entry{}, "key = ?", key).Error
}

func (ds *DatabaseStore) Set(ctx context.Context, key string, value interface{}) error {
	return ds.upsert(ctx, key, value, nil)
}

func (ds *DatabaseStore) SetWithExpiry(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid expire time %s for key %s", ttl, key)
	}
	expiresAt := ds.now().Add(ttl)
	return ds.upsert(ctx, key, value, &expiresAt)
}

// upsert writes the value as JSON, replacing any existing row and its expiry.
func (ds *DatabaseStore) upsert(ctx context.Context, key string, value interface{}, expiresAt *time.Time) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}

	entry := Entry{
		Key:       key,
		Value:     string(jsonData),
		ExpiresAt: expiresAt,
	}
	return ds.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry).Error
}

// Close closes the database connection
func (ds *DatabaseStore) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// globToRegexp turns a Redis glob into an anchored regular expression.
// Supported: *, ?, [...] classes with ^ negation and ranges, and \ escapes.
func globToRegexp(pattern string) (string, error) {
	var b strings.Builder
	b.WriteString("^")

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch c := runes[i]; c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '\\':
			if i+1 < len(runes) {
				i++
			}
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		case '[':
			end := i + 1
			if end < len(runes) && runes[end] == '^' {
				end++
			}
			// a leading ] is a literal member
			if end < len(runes) && runes[end] == ']' {
				end++
			}
			for end < len(runes) && runes[end] != ']' {
				if runes[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(runes) {
				return "", path.ErrBadPattern
			}
			b.WriteString(classToRegexp(runes[i+1 : end]))
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	b.WriteString("$")
	return b.String(), nil
}

func classToRegexp(body []rune) string {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '^' && i == 0:
			b.WriteRune(c)
		case c == '\\' && i+1 < len(body):
			i++
			b.WriteString(quoteClassMember(body[i]))
		default:
			b.WriteString(quoteClassMember(c))
		}
	}
	b.WriteString("]")
	return b.String()
}

func quoteClassMember(c rune) string {
	switch c {
	case '\\', '[', ']', '^':
		return `\` + string(c)
	}
	return string(c)
}
