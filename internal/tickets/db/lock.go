package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrLocked = errors.New("another import is running")

// Locker keeps two bulk imports from running against the same store.
type Locker interface {
	Lock(ctx context.Context, owner string) error
	Unlock(ctx context.Context, owner string) error
}

// NewImportLock picks the lock that matches the store. SQL backends return
// nil: AddTicket is a single INSERT, sqlite waits out other writers for
// SQLiteBusyTimeout, and unique violations surface as ErrDuplicateUserID or
// ErrDuplicateTicketID, which the import counts as skipped duplicates.
func NewImportLock(store Store, ttl time.Duration) Locker {
	switch s := store.(type) {
	case *RedisStore:
		return &RedisLock{Client: s.Client, Key: s.Prefix + ":import_lock", TTL: ttl}
	case *JSONStore:
		return &FileLock{Path: s.Path() + ".lock"}
	default:
		return nil
	}
}

// RedisLock is held by whoever set Key first. The TTL frees it if the
// holder dies without unlocking.
type RedisLock struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
}

func (l *RedisLock) Lock(ctx context.Context, owner string) error {
	ok, err := l.Client.SetNX(ctx, l.Key, owner, l.TTL).Result()
	if err != nil {
		return fmt.Errorf("redis lock error: %w", err)
	}
	if !ok {
		holder, _ := l.Client.Get(ctx, l.Key).Result()
		return fmt.Errorf("%w (held by %s)", ErrLocked, holder)
	}
	return nil
}

// Unlock only releases a lock that owner still holds.
func (l *RedisLock) Unlock(ctx context.Context, owner string) error {
	val, err := l.Client.Get(ctx, l.Key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == owner {
		return l.Client.Del(ctx, l.Key).Err()
	}
	return nil
}

// FileLock is an exclusively created file next to the JSON store. A crashed
// holder leaves it behind; delete it by hand once no import is running.
type FileLock struct {
	Path string
}

func (l *FileLock) Lock(ctx context.Context, owner string) error {
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, fs.ErrExist) {
		holder, _ := os.ReadFile(l.Path)
		return fmt.Errorf("%w (held by %s, lock file %s)", ErrLocked, strings.TrimSpace(string(holder)), l.Path)
	}
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	_, err = f.WriteString(owner + "\n")
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(l.Path)
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return nil
}

func (l *FileLock) Unlock(ctx context.Context, owner string) error {
	data, err := os.ReadFile(l.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == owner {
		return os.Remove(l.Path)
	}
	return nil
}
