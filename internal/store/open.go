package store

import (
	"database/sql"

	"go.uber.org/zap"
)

// Stores bundles the persistence layer handed to the services. DB is nil
// when the database could not be opened and the in-memory fallbacks are
// in use.
type Stores struct {
	DB      *sql.DB
	Offline OfflineStore
	Actions ActionStore
}

// Open initializes the SQLite database at dbPath and returns durable
// stores. If the database cannot be opened or migrated, it logs a warning
// and returns in-memory fallbacks so the caller keeps working without
// persistence.
func Open(dbPath string, logger *zap.Logger) *Stores {
	db, err := InitDB(dbPath)
	if err != nil {
		logger.Warn("database unavailable, using in-memory stores",
			zap.String("path", dbPath),
			zap.Error(err))
		return &Stores{
			Offline: NewMemoryOfflineStore(),
			Actions: NewMemoryActionStore(),
		}
	}
	return &Stores{
		DB:      db,
		Offline: NewSQLiteOfflineStore(db),
		Actions: NewSQLiteActionStore(db),
	}
}

// Close releases the underlying database if one was opened
func (s *Stores) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
