package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/store"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/translator/gemini/helpers"
	"github.com/spf13/cobra"
)

const previewWidth = 48

func newHistoryCmd(a *app) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the generation history",
	}

	var (
		recent    bool
		byContext string
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded generations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			h := a.history(db)

			var items []store.HistoryItem
			switch {
			case byContext != "":
				items, err = h.ByContext(cmd.Context(), byContext)
			case recent:
				items, err = h.Recent(cmd.Context(), store.DefaultRecentLimit)
			default:
				items, err = h.All(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), items)
		},
	}
	listCmd.Flags().BoolVar(&recent, "recent", false, "only entries from the last 48 hours")
	listCmd.Flags().StringVar(&byContext, "context", "", "only entries recorded for this context")

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search prompts and responses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			items, err := a.history(db).Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), items)
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show history statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			stats, err := a.history(db).Stats(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "total:               %d\n", stats.Total)
			fmt.Fprintf(w, "today:               %d\n", stats.Today)
			fmt.Fprintf(w, "contexts:            %d\n", stats.Contexts)
			fmt.Fprintf(w, "avg response length: %d\n", stats.AvgResponseLength)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			return a.history(db).Delete(cmd.Context(), args[0])
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := a.history(db).Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}

	historyCmd.AddCommand(listCmd, searchCmd, statsCmd, deleteCmd, clearCmd)
	return historyCmd
}

func newFavoritesCmd(a *app) *cobra.Command {
	favoritesCmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"fav"},
		Short:   "Manage saved prompts",
	}

	var category, tag string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			favs := db.Favorites()

			var items []store.Favorite
			switch {
			case category != "":
				items, err = favs.ByCategory(cmd.Context(), category)
			case tag != "":
				items, err = favs.ByTag(cmd.Context(), tag)
			default:
				items, err = favs.All(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printFavorites(cmd.OutOrStdout(), items)
		},
	}
	listCmd.Flags().StringVar(&category, "category", "", "only this category")
	listCmd.Flags().StringVar(&tag, "tag", "", "only favorites carrying this tag")

	var addCategory string
	var addTags []string
	addCmd := &cobra.Command{
		Use:   "add [title] [prompt]",
		Short: "Save a prompt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			id, err := db.Favorites().Add(cmd.Context(), args[0], args[1], addCategory, addTags)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	addCmd.Flags().StringVar(&addCategory, "category", store.DefaultCategory, "category")
	addCmd.Flags().StringSliceVar(&addTags, "tag", nil, "tag (repeatable)")

	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write every favorite as JSON to file, or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			data, err := db.Favorites().Export(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return os.WriteFile(args[0], data, 0o600)
		},
	}

	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Add favorites from a JSON export, skipping existing titles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read export: %w", err)
			}
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			added, err := db.Favorites().Import(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d favorites\n", added)
			return nil
		},
	}

	favoritesCmd.AddCommand(listCmd, addCmd, exportCmd, importCmd)
	return favoritesCmd
}

func printHistory(w io.Writer, items []store.HistoryItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no history")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tCONTEXT\tPROMPT\tRESPONSE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			it.ID,
			it.Timestamp.Local().Format(time.DateTime),
			it.Context,
			helpers.Preview(it.Prompt, previewWidth),
			helpers.Preview(it.Response, previewWidth),
		)
	}
	return tw.Flush()
}

func printFavorites(w io.Writer, items []store.Favorite) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no favorites")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tTAGS\tUSED\tPROMPT")
	for _, f := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			f.ID,
			f.Title,
			f.Category,
			strings.Join(f.Tags, ","),
			f.UsageCount,
			helpers.Preview(f.Prompt, previewWidth),
		)
	}
	return tw.Flush()
}
