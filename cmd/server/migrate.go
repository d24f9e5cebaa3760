package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dstlead/dstlead/internal/api"
	dbstore "github.com/dstlead/dstlead/internal/db"
)

// MigrateIfNeeded imports the legacy JSON snapshot into a fresh SQLite file.
// It does nothing once the SQLite file exists or when there is no snapshot.
func MigrateIfNeeded(snapshotPath, sqlitePath, migrationsDir string) error {
	if sqlitePath == "" {
		return errors.New("sqlite path is required")
	}
	if _, err := os.Stat(sqlitePath); err == nil {
		return nil // already migrated
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("check sqlite file: %w", err)
	}
	if snapshotPath == "" {
		return nil
	}
	snapshot, err := api.LoadSnapshot(snapshotPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load legacy snapshot: %w", err)
	}

	slog.Info("first run detected, migrating legacy snapshot", "snapshot", snapshotPath, "sqlite", sqlitePath)

	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
		return fmt.Errorf("create sqlite dir: %w", err)
	}
	conn, err := dbstore.Open(filepath.ToSlash(sqlitePath), migrationsDir)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			slog.Warn("failed to close sqlite db", "error", cerr)
		}
	}()

	dst, err := dbstore.NewSQLiteStore(conn)
	if err != nil {
		return fmt.Errorf("init sqlite store: %w", err)
	}
	if err := copySnapshotToStore(context.Background(), snapshot, dst); err != nil {
		// A half-filled database would be mistaken for a finished migration.
		_ = conn.Close()
		_ = os.Remove(sqlitePath)
		return fmt.Errorf("copy data: %w", err)
	}

	slog.Info("data migration completed", "users", len(snapshot.Users), "faqs", len(snapshot.FAQs), "audit", len(snapshot.Audit))
	return nil
}

func copySnapshotToStore(ctx context.Context, snap *api.Snapshot, dst api.Store) error {
	for _, u := range snap.SnapshotUsers() {
		if err := dst.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
	}
	for _, f := range snap.FAQs {
		if f == nil {
			continue
		}
		if err := dst.AddFAQ(ctx, f); err != nil {
			return fmt.Errorf("faq %s: %w", f.ID, err)
		}
	}
	for _, entry := range snap.Audit {
		if err := dst.AddAudit(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}
