package system

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/mimamori/internal/cli"
	"github.com/julianstephens/mimamori/internal/keyring"
	"github.com/julianstephens/mimamori/internal/relay"
)

// maxFlushBatches bounds a one-shot flush so a store that cannot record
// results does not spin forever.
const maxFlushBatches = 10

type RelayTokenSetCmd struct {
	Token string `arg:"" help:"Delivery token for the family relay."`
}

func (c *RelayTokenSetCmd) Run(ctx *cli.Context) error {
	token := strings.TrimSpace(c.Token)
	if token == "" {
		return errors.New("token cannot be empty")
	}
	if err := keyring.SetRelayToken(token); err != nil {
		return fmt.Errorf("failed to store relay token in keyring: %w", err)
	}
	fmt.Println("✓ Relay token stored successfully in OS keyring")
	return nil
}

type RelayTokenGetCmd struct{}

func (c *RelayTokenGetCmd) Run(ctx *cli.Context) error {
	token, err := keyring.GetRelayToken()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no relay token found in keyring. Use 'mimamori relay token set' to store one")
		}
		return fmt.Errorf("failed to retrieve relay token from keyring: %w", err)
	}
	fmt.Printf("Relay token: %s\n", maskToken(token))
	return nil
}

type RelayTokenDeleteCmd struct{}

func (c *RelayTokenDeleteCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteRelayToken(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no relay token found in keyring")
		}
		return fmt.Errorf("failed to delete relay token from keyring: %w", err)
	}
	fmt.Println("✓ Relay token deleted from OS keyring")
	return nil
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

type RelayListCmd struct {
	Limit int `help:"Maximum number of relay messages to show." default:"20"`
}

func (c *RelayListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	loc, err := ctx.Location(bg)
	if err != nil {
		return err
	}
	reqs, err := ctx.Store.RecentRelays(bg, c.Limit)
	if err != nil {
		return fmt.Errorf("failed to get relay messages: %w", err)
	}
	if len(reqs) == 0 {
		fmt.Println("No relay messages.")
		return nil
	}

	fmt.Printf("%-16s %-8s %-9s %-40s %s\n", "Created", "Status", "Category", "Message", "Error")
	fmt.Println(strings.Repeat("-", 100))
	for _, r := range reqs {
		msg := strings.ReplaceAll(r.Message, "\n", " ")
		fmt.Printf("%-16s %-8s %-9s %-40s %s\n",
			cli.FormatTime(&r.CreatedAt, loc), r.Status, r.Category, cli.Truncate(msg, 40), r.Error)
	}
	return nil
}

// RelayFlushCmd delivers pending relay messages once, without the daemon.
type RelayFlushCmd struct{}

func (c *RelayFlushCmd) Run(ctx *cli.Context) error {
	sent, failed := flush(context.Background(), ctx)
	fmt.Printf("Relay flush: %d sent, %d failed\n", sent, failed)
	return nil
}

func flush(bg context.Context, ctx *cli.Context) (sent, failed int) {
	w := relay.NewWorker(ctx.Store, relay.NewHTTPSender(ctx.RelayEndpoint), relay.WorkerConfig{Now: ctx.Now})
	for i := 0; i < maxFlushBatches; i++ {
		s, f := w.ProcessBatch(bg)
		sent += s
		failed += f
		if s+f == 0 {
			break
		}
	}
	return sent, failed
}

// SweepCmd is the daily missed check-in safety net, meant for cron.
type SweepCmd struct {
	Deliver bool `help:"Deliver pending relay messages right after the sweep."`
}

func (c *SweepCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	res, err := relay.NewSweep(ctx.Store, ctx.RelayToken, ctx.Now).Run(bg)
	if err != nil {
		return err
	}

	if res.Enqueued {
		fmt.Println("⚠️  No check-in for over 24 hours; family relay message queued.")
	} else {
		fmt.Printf("✓ Nothing to send (%s).\n", res.Reason)
	}

	if c.Deliver {
		sent, failed := flush(bg, ctx)
		fmt.Printf("Relay flush: %d sent, %d failed\n", sent, failed)
	}
	return nil
}
