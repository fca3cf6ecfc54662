package storage

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/signadot/sessiond/api"
)

// Store is a SQLite-backed checkpoint of session state.
type Store struct {
	db *gorm.DB
}

// Open opens or creates the database at path and migrates the sessions
// table.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// LoadAll reads every checkpointed session. A row whose resource blob does
// not decode is skipped rather than failing the whole restore; the row is
// overwritten on that session's next registration anyway.
func (s *Store) LoadAll() ([]api.SessionInfo, error) {
	var rows []sessionRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	res := make([]api.SessionInfo, 0, len(rows))
	for i := range rows {
		info, err := rows[i].toInfo()
		if err != nil {
			continue
		}
		res = append(res, info)
	}
	return res, nil
}

// SaveOne upserts a single session row.
func (s *Store) SaveOne(info *api.SessionInfo) error {
	row, err := rowFromInfo(info)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", info.SessionID, err)
	}
	err = s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
	if err != nil {
		return fmt.Errorf("saving session %s: %w", info.SessionID, err)
	}
	return nil
}

// SaveAll upserts every given session in one transaction.
func (s *Store) SaveAll(sessions []api.SessionInfo) error {
	if len(sessions) == 0 {
		return nil
	}
	rows := make([]*sessionRow, 0, len(sessions))
	for i := range sessions {
		row, err := rowFromInfo(&sessions[i])
		if err != nil {
			return fmt.Errorf("encoding session %s: %w", sessions[i].SessionID, err)
		}
		rows = append(rows, row)
	}
	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(rows).Error
	if err != nil {
		return fmt.Errorf("saving %d sessions: %w", len(rows), err)
	}
	return nil
}

// Delete removes the rows for the given session ids.
func (s *Store) Delete(sessionIDs ...string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	err := s.db.Where("session_id IN ?", sessionIDs).Delete(&sessionRow{}).Error
	if err != nil {
		return fmt.Errorf("deleting %d sessions: %w", len(sessionIDs), err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
