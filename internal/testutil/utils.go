package testutil

import (
	"log"
	"os"
	"testing"

	"github.com/npezzotti/go-studychat/internal/database"
)

func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}

// InMemoryStore returns an in-memory Badger store closed at the end of the
// test.
func InMemoryStore(t *testing.T) *database.BadgerMessageStore {
	t.Helper()

	store, err := database.NewBadgerMessageStore("")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
