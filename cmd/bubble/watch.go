package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Napageneral/bubble/internal/backup"
	"github.com/Napageneral/bubble/internal/likely"
	"github.com/Napageneral/bubble/internal/live"
	"github.com/Napageneral/bubble/internal/logger"
	"github.com/Napageneral/bubble/internal/notify"
)

func (a *app) matcher() *likely.Matcher {
	return likely.New(a.store, a.settings, likely.Options{
		HideAfter: a.cfg.HideAfter(),
		Notifier:  notify.New(a.cfg.Likely.NotifyCommand, logger.Component("notify")),
		DB:        a.db,
		Logger:    logger.Component("likely"),
	})
}

func (a *app) backups() (*backup.Service, error) {
	dir, err := a.cfg.BackupDir()
	if err != nil {
		return nil, err
	}
	return backup.New(a.transfer, backup.Options{
		Dir:    dir,
		Full:   a.cfg.Backup.Full,
		DB:     a.db,
		Logger: logger.Component("backup"),
	}), nil
}

func watchCmd() *cobra.Command {
	var foreground bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow call events and show the likely caller until interrupted",
		Long: `watch tails the call-event spool (one JSON object per line, as written
by the platform bridge) and prints the likely caller for each incoming call.
The bridge command and a backup schedule are run alongside when configured.`,
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			spoolPath, err := a.cfg.SpoolPath()
			if err != nil {
				return err
			}

			m := a.matcher()
			m.SetForeground(foreground)
			shown, unsubscribe := m.Subscribe(4)
			defer unsubscribe()

			events := make(chan likely.CallEvent, 16)
			specs := []live.WatcherSpec{
				live.NewSpoolWatcher(a.liveKV, live.SpoolOptions{
					Path:     spoolPath,
					Debounce: time.Duration(a.cfg.Live.DebounceMS) * time.Millisecond,
				}, events, logger.Component("spool")),
			}
			if len(a.cfg.Live.BridgeCommand) > 0 {
				specs = append(specs, live.NewBridgeWatcher(a.cfg.Live.BridgeCommand, spoolPath, logger.Component("bridge")))
			}
			manager := live.NewManager(a.liveKV, logger.Component("live"), specs...)

			if schedule := strings.TrimSpace(a.cfg.Backup.Schedule); schedule != "" {
				b, err := a.backups()
				if err != nil {
					return err
				}
				if err := b.Start(schedule); err != nil {
					return err
				}
				defer b.Stop()
			}

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				if err := manager.Run(ctx); err != nil {
					logger.FromContext(ctx).Error("live manager stopped", slog.Any("error", err))
				}
			}()
			go func() {
				defer wg.Done()
				_ = m.Run(ctx, events)
			}()

			if !jsonOutput {
				fmt.Printf("Watching %s (Ctrl-C to stop)\n", spoolPath)
			}
			for {
				select {
				case <-ctx.Done():
					wg.Wait()
					return nil
				case names := <-shown:
					printLikely(names)
				}
			}
		}),
	}
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Treat the app as foregrounded (no heads-up notifications)")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show what the last watch run recorded for each watcher",
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			statuses := live.GetStatuses(ctx, a.liveKV)
			if jsonOutput {
				printJSON(statuses)
				return nil
			}
			for _, s := range statuses {
				status := s.Status
				if status == "" {
					status = "never run"
				}
				fmt.Printf("%-8s %-10s restarts=%d", s.Watcher, status, s.Restarts)
				if s.LastHeartbeat != nil {
					fmt.Printf(" heartbeat=%s", time.Unix(*s.LastHeartbeat, 0).Format(time.RFC3339))
				}
				if s.Watcher == live.WatcherSpool && s.SpoolOffset > 0 {
					fmt.Printf(" offset=%d", s.SpoolOffset)
				}
				if s.LastError != "" {
					fmt.Printf(" error=%q", s.LastError)
				}
				fmt.Println()
			}
			return nil
		}),
	})

	return cmd
}

func printLikely(names []string) {
	if jsonOutput {
		if names == nil {
			names = []string{}
		}
		printJSON(map[string]any{"names": names})
		return
	}
	if len(names) == 0 {
		fmt.Println("(cleared)")
		return
	}
	fmt.Printf("%s %s\n", notify.Title, strings.Join(names, ", "))
}

func likelyCmd() *cobra.Command {
	var raw, source string
	var background bool
	cmd := &cobra.Command{
		Use:   "likely [number]",
		Short: "Match one incoming call against the address book",
		Args:  cobra.MaximumNArgs(1),
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			ev := likely.CallEvent{Type: likely.EventIncoming, RawText: raw, Source: source}
			if len(args) > 0 {
				ev.Number = args[0]
			}
			if ev.Number == "" && ev.RawText == "" {
				return fmt.Errorf("pass a number or --raw text")
			}
			m := a.matcher()
			m.SetForeground(!background)
			names := m.Handle(ctx, ev)
			if !jsonOutput && len(names) == 0 {
				fmt.Println("No likely caller")
				return nil
			}
			printLikely(names)
			return nil
		}),
	}
	cmd.Flags().StringVar(&raw, "raw", "", "Notification text to pull a number from")
	cmd.Flags().StringVar(&source, "source", "cli", "Event source label")
	cmd.Flags().BoolVar(&background, "background", false, "Also post the heads-up notification")
	return cmd
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a CSV snapshot to the backup directory now",
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			b, err := a.backups()
			if err != nil {
				return err
			}
			path, n, err := b.WriteNow(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(map[string]any{"ok": true, "path": path, "contacts": n})
				return nil
			}
			fmt.Printf("Wrote %d contacts to %s\n", n, path)
			return nil
		}),
	}
}
