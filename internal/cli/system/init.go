package system

import (
	"fmt"
	"os"

	"github.com/julianstephens/mimamori/internal/backup"
	"github.com/julianstephens/mimamori/internal/cli"
	"github.com/julianstephens/mimamori/internal/logger"
	"github.com/julianstephens/mimamori/internal/storage/sqlite"
)

type InitCmd struct {
	Force bool `help:"Force reset by deleting the existing SQLite database before initialization."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if _, ok := ctx.Store.Provider.(*sqlite.Store); !ok {
			return fmt.Errorf("--force is only supported for SQLite storage")
		}
		dbPath := ctx.Store.GetConfigPath()
		if _, err := os.Stat(dbPath); err == nil {
			if path, err := backup.NewManager(dbPath).Create(); err != nil {
				logger.Warn("Backup before reset failed", "error", err)
			} else {
				fmt.Printf("Backed up existing database to: %s\n", path)
			}
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			fmt.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized mimamori storage at: %s\n", ctx.Store.GetConfigPath())
	return nil
}
