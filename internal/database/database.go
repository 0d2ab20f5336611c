package database

import (
	"fmt"
)

const (
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Open returns the MessageStore for backend. The Postgres schema is migrated
// before the store is returned.
func Open(backend, dsn, badgerPath string) (MessageStore, error) {
	switch backend {
	case BackendPostgres, "":
		store, err := NewPgMessageStore(dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case BackendBadger:
		store, err := NewBadgerMessageStore(badgerPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
