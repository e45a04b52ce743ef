package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Napageneral/bubble/internal/seed"
	"github.com/Napageneral/bubble/internal/transfer"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Merge contacts from a CSV file or a device source",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "csv <path|->",
		Short: "Import an Outlook-compatible CSV file (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			var (
				sum transfer.Summary
				err error
			)
			if args[0] == "-" {
				sum, err = a.transfer.ImportCSV(ctx, os.Stdin)
			} else {
				sum, err = a.transfer.ImportCSVFile(ctx, args[0])
			}
			if err != nil {
				return err
			}
			return printSummary(sum)
		}),
	})

	var file, account string
	deviceCmd := &cobra.Command{
		Use:   "device",
		Short: "Import from a device contacts source (a JSON export or Google Contacts via gog)",
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			var src transfer.DeviceSource
			switch {
			case file != "":
				src = transfer.FileSource{Path: file}
			default:
				if account == "" {
					account = a.cfg.Import.GogAccount
				}
				src = transfer.GogSource{Account: account}
			}
			sum, err := a.transfer.ImportDevice(ctx, src)
			if errors.Is(err, transfer.ErrPermissionDenied) {
				return fmt.Errorf("%w (pass --file, or --account with gog installed)", err)
			}
			if err != nil {
				return err
			}
			return printSummary(sum)
		}),
	}
	deviceCmd.Flags().StringVar(&file, "file", "", "JSON array of device contacts")
	deviceCmd.Flags().StringVar(&account, "account", "", "Google account for gog (default from config)")
	cmd.AddCommand(deviceCmd)

	return cmd
}

func printSummary(sum transfer.Summary) error {
	if jsonOutput {
		printJSON(sum)
		return nil
	}
	fmt.Printf("Imported %d records: %d added, %d updated\n", sum.Total, sum.Added, sum.Updated)
	return nil
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export contacts",
	}

	var out string
	var full bool
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Write contacts as Outlook-compatible CSV",
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			var w io.Writer = os.Stdout
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			n, err := a.transfer.ExportCSV(ctx, w, full)
			if err != nil {
				return err
			}
			if w == os.Stdout {
				return nil
			}
			if jsonOutput {
				printJSON(map[string]any{"ok": true, "path": out, "contacts": n})
				return nil
			}
			fmt.Printf("Exported %d contacts to %s\n", n, out)
			return nil
		}),
	}
	csvCmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	csvCmd.Flags().BoolVar(&full, "full", false, "Use the complete Outlook header set")
	cmd.AddCommand(csvCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty address book with sample contacts",
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			existing := a.store.Load(ctx)
			if len(existing) > 0 && !force {
				return fmt.Errorf("address book already has %d contacts (use --force to add samples anyway)", len(existing))
			}
			samples := seed.Generate(nil)
			if err := a.store.Save(ctx, append(existing, samples...)); err != nil {
				return err
			}
			if jsonOutput {
				printJSON(map[string]any{"ok": true, "added": len(samples)})
				return nil
			}
			fmt.Printf("Added %d sample contacts\n", len(samples))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "Add samples even when contacts exist")
	return cmd
}
