package system

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/mimamori/internal/cli"
	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/notifier"
)

// NotifyCmd sends a one-off notification through the tray companion.
type NotifyCmd struct {
	Text  string `arg:"" help:"Notification body."`
	Title string `help:"Notification title; defaults to the alert title."`
}

func (c *NotifyCmd) Run(ctx *cli.Context) error {
	if ctx.Notifier == nil {
		return errors.New("local notifications are not configured")
	}
	title := c.Title
	if title == "" {
		title = constants.NotificationTitle
	}
	err := ctx.Notifier.Notify(context.Background(), notifier.Notification{
		Title: title,
		Body:  c.Text,
		Tag:   "manual",
	})
	if errors.Is(err, notifier.ErrTrayNotRunning) {
		return fmt.Errorf("%w: start %s first", err, constants.TrayAppExecutable)
	}
	return err
}
