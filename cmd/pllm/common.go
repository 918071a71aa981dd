package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/metalagman/pllm/internal/db"
)

func openDB(dir string) (*sql.DB, func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, func() {}, fmt.Errorf("create state dir: %w", err)
	}
	storeDB, err := db.Open(filepath.Join(dir, "pllm.db"))
	if err != nil {
		return nil, func() {}, err
	}
	return storeDB, func() { _ = storeDB.Close() }, nil
}

func workDir() (string, error) {
	root, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working dir: %w", err)
	}
	return root, nil
}

func absStateDir(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}
