// Package testutil holds helpers shared by repository and service tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE clubs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		stripe_account_id TEXT,
		payouts_enabled BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		club_id TEXT NOT NULL,
		period DATETIME NOT NULL,
		subscription_type TEXT NOT NULL,
		visit_count INTEGER NOT NULL DEFAULT 0,
		is_unique_visit BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, club_id, period, subscription_type)
	)`,
	`CREATE TABLE visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		club_id TEXT NOT NULL,
		subscription_type TEXT NOT NULL,
		cost_to_club NUMERIC NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE club_payouts (
		id INTEGER PRIMARY KEY,
		club_id TEXT NOT NULL,
		club_name TEXT NOT NULL,
		period DATETIME NOT NULL,
		unlimited_amount NUMERIC NOT NULL DEFAULT 0,
		unlimited_visits INTEGER NOT NULL DEFAULT 0,
		unlimited_users TEXT NOT NULL DEFAULT '[]',
		credits_amount NUMERIC NOT NULL DEFAULT 0,
		credits_visits INTEGER NOT NULL DEFAULT 0,
		credits_users TEXT NOT NULL DEFAULT '[]',
		total_amount NUMERIC NOT NULL DEFAULT 0,
		total_visits INTEGER NOT NULL DEFAULT 0,
		unique_users INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INTEGER NOT NULL DEFAULT 0,
		transfer_id TEXT,
		error_message TEXT,
		transfer_attempted_at DATETIME,
		transfer_completed_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (club_id, period)
	)`,
	`CREATE TABLE casbin_rule (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ptype TEXT,
		v0 TEXT,
		v1 TEXT,
		v2 TEXT,
		v3 TEXT,
		v4 TEXT,
		v5 TEXT
	)`,
}

// OpenSQLite returns an isolated in-memory database with the payout schema.
func OpenSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

// SeedClub inserts a club row.
func SeedClub(t *testing.T, db *gorm.DB, id, name, stripeAccountID string, payoutsEnabled bool) {
	t.Helper()

	var account any
	if stripeAccountID != "" {
		account = stripeAccountID
	}
	err := db.Exec(
		`INSERT INTO clubs (id, name, stripe_account_id, payouts_enabled) VALUES (?, ?, ?, ?)`,
		id, name, account, payoutsEnabled,
	).Error
	if err != nil {
		t.Fatalf("seed club: %v", err)
	}
}
