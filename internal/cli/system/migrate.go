package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/mimamori/internal/cli"
)

type migrator interface {
	Migrate(ctx context.Context, logFn func(string)) (int, error)
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	m, ok := ctx.Store.Provider.(migrator)
	if !ok {
		return fmt.Errorf("migrate is not supported for %s storage", ctx.Store.GetConfigPath())
	}

	count, err := m.Migrate(context.Background(), func(msg string) {
		fmt.Println(msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		fmt.Println("No migrations to apply. Database is up to date.")
	} else {
		fmt.Printf("\nSuccessfully applied %d migration(s).\n", count)
	}
	return nil
}
