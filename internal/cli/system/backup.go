package system

import (
	"fmt"
	"strings"

	"github.com/julianstephens/mimamori/internal/backup"
	"github.com/julianstephens/mimamori/internal/cli"
	"github.com/julianstephens/mimamori/internal/storage/sqlite"
)

func backupManager(ctx *cli.Context) (*backup.Manager, error) {
	if _, ok := ctx.Store.Provider.(*sqlite.Store); !ok {
		return nil, fmt.Errorf("backups are only supported for SQLite storage")
	}
	return backup.NewManager(ctx.Store.GetConfigPath()), nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	m, err := backupManager(ctx)
	if err != nil {
		return err
	}
	path, err := m.Create()
	if err != nil {
		return err
	}
	fmt.Printf("✓ Backup created: %s\n", path)
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	m, err := backupManager(ctx)
	if err != nil {
		return err
	}
	backups, err := m.List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		fmt.Printf("No backups in %s\n", m.Dir())
		return nil
	}

	fmt.Printf("%-20s %10s  %s\n", "Created", "Size", "Path")
	fmt.Println(strings.Repeat("-", 80))
	for _, b := range backups {
		fmt.Printf("%-20s %8.1fKB  %s\n", b.Timestamp.Format("2006-01-02 15:04:05"), float64(b.Size)/1024, b.Path)
	}
	return nil
}
