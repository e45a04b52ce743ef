package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Napageneral/bubble/internal/browse"
	"github.com/Napageneral/bubble/internal/contact"
	"github.com/Napageneral/bubble/internal/names"
	"github.com/Napageneral/bubble/internal/outlookcsv"
)

// contactFlags binds the editable contact fields to command flags.
type contactFlags struct {
	first, last, phone, email string
	birthday, company, title  string
	color                     string
	tags                      []string
}

func (f *contactFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.first, "first", "", "First name")
	cmd.Flags().StringVar(&f.last, "last", "", "Last name")
	cmd.Flags().StringVar(&f.phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&f.email, "email", "", "Email address")
	cmd.Flags().StringVar(&f.birthday, "birthday", "", "Birthday (YYYY-MM-DD or MM/DD/YYYY)")
	cmd.Flags().StringVar(&f.company, "company", "", "Company")
	cmd.Flags().StringVar(&f.title, "title", "", "Job title")
	cmd.Flags().StringVar(&f.color, "color", "", "Display color")
	cmd.Flags().StringSliceVar(&f.tags, "tags", nil, "Tags (comma separated)")
}

// apply copies every flag the user set onto c.
func (f *contactFlags) apply(cmd *cobra.Command, c *contact.Contact) error {
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = strings.TrimSpace(v)
		}
	}
	set("first", &c.FirstName, f.first)
	set("last", &c.LastName, f.last)
	set("phone", &c.Phone, f.phone)
	set("email", &c.Email, f.email)
	set("company", &c.Company, f.company)
	set("title", &c.Title, f.title)
	set("color", &c.Color, f.color)
	if cmd.Flags().Changed("birthday") {
		c.Birthday = ""
		if strings.TrimSpace(f.birthday) != "" {
			bd := outlookcsv.ParseBirthday(f.birthday)
			if bd == "" {
				return fmt.Errorf("unrecognized birthday %q", f.birthday)
			}
			c.Birthday = bd
		}
	}
	if cmd.Flags().Changed("tags") {
		c.Tags = contact.UniqueTags(f.tags)
	}
	return nil
}

func contactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "contacts",
		Aliases: []string{"c"},
		Short:   "Browse and edit contacts",
	}

	var search string
	var tags []string
	var all bool
	listCmd := &cobra.Command{
		Use:   "list [search]",
		Short: "List contacts, filtered by the tag selection",
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			s := a.settings.Load(ctx)
			selected := a.selection.Load(ctx)
			if search == "" && len(args) > 0 {
				search = strings.Join(args, " ")
			}
			if tags != nil {
				selected = contact.UniqueTags(tags)
			}
			contacts := browse.Search(a.store.Load(ctx), search)
			arranged := browse.Arrange(contacts, selected, s.NameOrder)
			if !all && len(selected) > 0 {
				filtered := arranged[:0]
				for _, c := range arranged {
					if browse.MatchStatus(c, selected) != browse.MatchNone {
						filtered = append(filtered, c)
					}
				}
				arranged = filtered
			}

			if jsonOutput {
				printJSON(arranged)
				return nil
			}
			if len(arranged) == 0 {
				fmt.Println("No contacts")
				return nil
			}
			for _, c := range arranged {
				printContactLine(c, selected, s.NameOrder)
			}
			return nil
		}),
	}
	listCmd.Flags().StringVarP(&search, "search", "s", "", "Fuzzy search term")
	listCmd.Flags().StringSliceVar(&tags, "tags", nil, "Use these tags instead of the saved selection")
	listCmd.Flags().BoolVar(&all, "all", false, "Include contacts that match none of the selected tags")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one contact",
		Args:  cobra.ExactArgs(1),
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			c, ok := a.store.Get(ctx, args[0])
			if !ok {
				return fmt.Errorf("contact %s not found", args[0])
			}
			if jsonOutput {
				printJSON(c)
				return nil
			}
			printContact(c, a.settings.Load(ctx).NameOrder)
			return nil
		}),
	})

	var addFlags contactFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a contact",
	}
	addCmd.Run = withApp(func(ctx context.Context, a *app, args []string) error {
		c := contact.New()
		if err := addFlags.apply(addCmd, &c); err != nil {
			return err
		}
		saved, err := a.store.Add(ctx, c)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(saved)
			return nil
		}
		fmt.Printf("Added %s (%s)\n", names.DisplayName(saved, a.settings.Load(ctx).NameOrder), saved.ID)
		return nil
	})
	addFlags.register(addCmd)
	cmd.AddCommand(addCmd)

	var editFlags contactFlags
	editCmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a contact",
		Args:  cobra.ExactArgs(1),
	}
	editCmd.Run = withApp(func(ctx context.Context, a *app, args []string) error {
		c, ok := a.store.Get(ctx, args[0])
		if !ok {
			return fmt.Errorf("contact %s not found", args[0])
		}
		if err := editFlags.apply(editCmd, &c); err != nil {
			return err
		}
		saved, err := a.store.Update(ctx, c)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(saved)
			return nil
		}
		fmt.Printf("Updated %s\n", names.DisplayName(saved, a.settings.Load(ctx).NameOrder))
		return nil
	})
	editFlags.register(editCmd)
	cmd.AddCommand(editCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a contact",
		Args:  cobra.ExactArgs(1),
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			if err := a.store.Delete(ctx, args[0]); err != nil {
				return err
			}
			if jsonOutput {
				printJSON(map[string]any{"ok": true, "deleted": args[0]})
				return nil
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		}),
	})

	return cmd
}

func printContactLine(c contact.Contact, selected []string, order names.Order) {
	mark := " "
	if len(selected) > 0 && browse.MatchStatus(c, selected) == browse.MatchFull {
		mark = "*"
	}
	name := names.DisplayName(c, order)
	if name == "" {
		name = "(no name)"
	}
	line := fmt.Sprintf("%s %-28s %-16s %s", mark, name, c.Phone, c.Email)
	if len(c.Tags) > 0 {
		line += "  [" + strings.Join(c.Tags, ", ") + "]"
	}
	fmt.Println(strings.TrimRight(line, " "))
}

func printContact(c contact.Contact, order names.Order) {
	fmt.Printf("%s\n", names.DisplayName(c, order))
	fields := []struct{ label, value string }{
		{"ID", c.ID},
		{"Phone", c.Phone},
		{"Email", c.Email},
		{"Birthday", c.Birthday},
		{"Company", c.Company},
		{"Title", c.Title},
		{"Tags", strings.Join(c.Tags, ", ")},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Printf("  %-9s %s\n", f.label+":", f.value)
		}
	}
}

func tagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Summarize tags and manage the tag selection",
	}

	var query string
	var byCount bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tags with counts and selection status",
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			selected := a.selection.Load(ctx)
			summary := browse.TagSummary(a.store.Load(ctx), selected, query, byCount)
			if jsonOutput {
				printJSON(summary)
				return nil
			}
			if len(summary) == 0 {
				fmt.Println("No tags")
				return nil
			}
			for _, t := range summary {
				fmt.Printf("%-20s %4d  %s\n", t.Name, t.Count, t.Status)
			}
			return nil
		}),
	}
	listCmd.Flags().StringVarP(&query, "query", "q", "", "Only tags containing this text")
	listCmd.Flags().BoolVar(&byCount, "by-count", false, "Order by contact count within each status")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <tag>",
		Short: "Remove a tag from every contact",
		Args:  cobra.ExactArgs(1),
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			n, err := a.store.RemoveTag(ctx, args[0])
			if err != nil {
				return err
			}
			a.selection.Remove(ctx, args[0])
			if jsonOutput {
				printJSON(map[string]any{"ok": true, "tag": args[0], "contacts": n})
				return nil
			}
			fmt.Printf("Removed %q from %d contacts\n", args[0], n)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "select <tag>...",
		Short: "Toggle tags in the saved selection",
		Args:  cobra.MinimumNArgs(1),
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			var selected []string
			for _, t := range args {
				selected = a.selection.Toggle(ctx, t)
			}
			return printSelection(selected)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the tag selection",
		Run: withApp(func(ctx context.Context, a *app, args []string) error {
			a.selection.Clear(ctx)
			return printSelection(nil)
		}),
	})

	return cmd
}

func printSelection(selected []string) error {
	if jsonOutput {
		if selected == nil {
			selected = []string{}
		}
		printJSON(map[string]any{"selected": selected})
		return nil
	}
	if len(selected) == 0 {
		fmt.Println("Selection cleared")
		return nil
	}
	fmt.Printf("Selected: %s\n", strings.Join(selected, ", "))
	return nil
}
