// Package audit is the local, append-only ledger of executed commands,
// shell sessions, and update attempts (component J). It never leaves the
// host and is exposed read-only through the loopback API.
package audit

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Record is one audit ledger row.
type Record struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	At      time.Time `json:"at"`
	Kind    string    `gorm:"size:32;index" json:"kind"` // command|session|update
	Subject string    `gorm:"size:256" json:"subject"`
	Detail  string    `gorm:"size:4096" json:"detail"`
	Outcome string    `gorm:"size:16" json:"outcome"` // ok|error
	Error   string    `gorm:"size:1024" json:"error,omitempty"`
}

// Ledger wraps the gorm/sqlite connection.
type Ledger struct {
	db *gorm.DB
}

// Open creates or attaches to the sqlite ledger at path and migrates the
// Record schema.
func Open(path string) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Ledger{db: db}, nil
}

// Append inserts one audit row, stamping At with the given timestamp
// (callers pass time.Now() so the package stays testable without wall
// clock coupling).
func (l *Ledger) Append(at time.Time, kind, subject, detail, outcome, errText string) error {
	rec := Record{At: at, Kind: kind, Subject: subject, Detail: detail, Outcome: outcome, Error: errText}
	return l.db.Create(&rec).Error
}

// Recent returns the most recent n audit rows, newest first, for the
// GET /audit/recent loopback endpoint.
func (l *Ledger) Recent(n int) ([]Record, error) {
	var recs []Record
	if err := l.db.Order("at desc").Limit(n).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Close releases the underlying sqlite connection.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
