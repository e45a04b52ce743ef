package main

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Napageneral/bubble/internal/callapp"
	"github.com/Napageneral/bubble/internal/names"
	"github.com/Napageneral/bubble/internal/settings"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print current settings",
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			return printSettings(a.settings.Load(ctx))
		}),
	})

	var popup, headsUp bool
	var order, method string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change one or more settings",
	}
	setCmd.Run = withApp(func(ctx context.Context, a *app, args []string) error {
		var p settings.Patch
		flags := setCmd.Flags()
		if flags.Changed("popup") {
			p.LikelyPopupEnabled = &popup
		}
		if flags.Changed("heads-up") {
			p.HeadsUpEnabled = &headsUp
		}
		if flags.Changed("name-order") {
			o := names.Order(order)
			if !o.Valid() {
				return fmt.Errorf("unknown name order %q (want %s or %s)", order, names.FirstLast, names.LastFirst)
			}
			p.NameOrder = &o
		}
		if flags.Changed("call-method") {
			m := callapp.ParseMethod(method)
			if m == callapp.Ask && !strings.EqualFold(strings.TrimSpace(method), string(callapp.Ask)) {
				return fmt.Errorf("unknown call method %q", method)
			}
			p.CallMethod = &m
		}
		return printSettings(a.settings.Save(ctx, p))
	})
	setCmd.Flags().BoolVar(&popup, "popup", true, "Show the likely-caller popup")
	setCmd.Flags().BoolVar(&headsUp, "heads-up", true, "Post a heads-up notification when in the background")
	setCmd.Flags().StringVar(&order, "name-order", "", "firstLast or lastFirst")
	setCmd.Flags().StringVar(&method, "call-method", "", "ask, system, facetime, skype, whatsapp, telegram or viber")
	cmd.AddCommand(setCmd)

	return cmd
}

func printSettings(s settings.Settings) error {
	if jsonOutput {
		printJSON(s)
		return nil
	}
	fmt.Printf("Likely popup:   %t\n", s.LikelyPopupEnabled)
	fmt.Printf("Heads-up:       %t\n", s.HeadsUpEnabled)
	fmt.Printf("Name order:     %s\n", s.NameOrder)
	fmt.Printf("Call method:    %s\n", s.CallMethod.Label())
	return nil
}

func callCmd() *cobra.Command {
	var method string
	var open bool
	cmd := &cobra.Command{
		Use:   "call <contact-id|number>",
		Short: "Print (or open) the launch URL for calling a contact",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Run = withApp(func(ctx context.Context, a *app, args []string) error {
		number := args[0]
		if c, ok := a.store.Get(ctx, args[0]); ok {
			if c.Phone == "" {
				return fmt.Errorf("%s has no phone number", names.DisplayName(c, a.settings.Load(ctx).NameOrder))
			}
			number = c.Phone
		}

		m := a.settings.Load(ctx).CallMethod
		if cmd.Flags().Changed("method") {
			m = callapp.ParseMethod(method)
		}
		u, err := callapp.URL(m, number)
		if err != nil {
			return err
		}
		if open {
			if err := openURL(u); err != nil {
				return err
			}
		}
		if jsonOutput {
			printJSON(map[string]any{"method": m, "url": u, "opened": open})
			return nil
		}
		fmt.Println(u)
		return nil
	})
	cmd.Flags().StringVarP(&method, "method", "m", "", "Override the configured call method")
	cmd.Flags().BoolVar(&open, "open", false, "Hand the URL to the system opener")
	return cmd
}

func openURL(u string) error {
	opener := "xdg-open"
	if runtime.GOOS == "darwin" {
		opener = "open"
	}
	if err := exec.Command(opener, u).Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", u, err)
	}
	return nil
}
