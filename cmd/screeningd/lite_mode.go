package main

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// openCheckpointDB opens (creating if necessary) the embeddable SQLite
// database the checkpoint store always uses, in Lite Mode and in
// Postgres-backed deployments alike.
func openCheckpointDB(dataDir string) (*sql.DB, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("screeningd: create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "checkpoints.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("screeningd: open sqlite checkpoint db: %w", err)
	}
	return db, nil
}

// loadOrGenerateVaultKey loads the persisted AES-256 key used to seal
// identifiers and cached provider responses at rest, generating and saving
// one on first run.
func loadOrGenerateVaultKey(dataDir string) ([]byte, error) {
	keyPath := filepath.Join(dataDir, "vault.key")
	if b, err := os.ReadFile(keyPath); err == nil {
		key, decErr := hex.DecodeString(string(b))
		if decErr != nil {
			return nil, fmt.Errorf("screeningd: invalid vault.key format: %w", decErr)
		}
		log.Printf("[screeningd] vault: loaded persistent key")
		return key, nil
	}

	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("screeningd: create data dir: %w", err)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("screeningd: generate vault key: %w", err)
	}
	log.Printf("[screeningd] vault: generating new persistent key at %s", keyPath)
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return nil, fmt.Errorf("screeningd: save vault key: %w", err)
	}
	return key, nil
}
