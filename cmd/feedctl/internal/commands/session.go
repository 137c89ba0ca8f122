package commands

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-feed-server/mirror"
)

type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, _, client, err := globals.session(ctx)
	if err != nil {
		return err
	}
	m := mirror.Mount(ctx, client)
	defer m.Close()

	select {
	case <-m.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}
	printUser(globals, m.Snapshot().User)
	return nil
}

type WatchCmd struct {
	Interval time.Duration `help:"How often to check the session" default:"30s"`
}

// Run prints the user on every auth change. Polling the session lets the provider
// refresh an expiring token, which surfaces as a change.
func (c *WatchCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, _, client, err := globals.session(ctx)
	if err != nil {
		return err
	}
	m := mirror.Mount(ctx, client)
	defer m.Close()

	var printed atomic.Bool
	show := func(s mirror.Snapshot) {
		printed.Store(true)
		globals.printf("%s ", time.Now().Format(time.TimeOnly))
		printUser(globals, s.User)
	}
	unsubscribe := m.Subscribe(show)
	defer unsubscribe()

	select {
	case <-m.Ready():
	case <-ctx.Done():
		return nil
	}
	// the initial fetch may have landed before the subscription
	if !printed.Load() {
		show(m.Snapshot())
	}

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Wait()
			return nil
		case <-ticker.C:
			if _, err := client.GetSession(ctx); err != nil {
				globals.printf("session check failed: %v\n", err)
			}
		}
	}
}
