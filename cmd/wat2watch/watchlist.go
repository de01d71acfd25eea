package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/wat2watch/internal/domain"
	"github.com/John-Robertt/wat2watch/internal/render"
	"github.com/John-Robertt/wat2watch/internal/watchlist"
)

func newWatchlistCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Manage saved movies",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show the watchlist",
			Args:  noArgs,
			RunE:  c.watchlistList,
		},
		&cobra.Command{
			Use:   "add <imdb-id|imdb-url>",
			Short: "Look up a movie on OMDb and save it",
			Args:  exactArgs(1),
			RunE:  c.watchlistAdd,
		},
		&cobra.Command{
			Use:   "remove <imdb-id>",
			Short: "Remove a saved movie",
			Args:  exactArgs(1),
			RunE:  c.watchlistRemove,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every saved movie",
			Args:  noArgs,
			RunE:  c.watchlistClear,
		},
	)
	return cmd
}

// withWatchlist 打开存储并执行 fn；任何错误以退出码 1 结束。
func (c *cli) withWatchlist(fn func(a *app, wl *watchlist.Store) error) error {
	a, err := newApp(c.cfg)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	defer a.Close()

	wl, err := a.watchlist()
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	if err := fn(a, wl); err != nil {
		if errors.Is(err, watchlist.ErrCorrupt) {
			err = fmt.Errorf("%w（执行 \"wat2watch watchlist clear\" 重置）", err)
		}
		return &exitError{code: exitFailure, err: err}
	}
	return nil
}

func (c *cli) watchlistList(cmd *cobra.Command, _ []string) error {
	return c.withWatchlist(func(_ *app, wl *watchlist.Store) error {
		recs, err := wl.List(cmd.Context())
		if err != nil {
			return err
		}
		if !c.outTTY {
			if err := writeJSON(c.out, recs); err != nil {
				return err
			}
			fmt.Fprintf(c.err, "完成：count=%d\n", len(recs))
			return nil
		}
		if len(recs) == 0 {
			fmt.Fprintln(c.out, "Your watchlist is empty.")
			return nil
		}
		cards := render.NewCards(recs, func(string) bool { return true })
		st := render.DefaultTextStyles(0)
		for _, card := range cards {
			fmt.Fprintln(c.out, render.TextCard(card, st))
		}
		return nil
	})
}

func (c *cli) watchlistAdd(cmd *cobra.Command, args []string) error {
	id, ok := domain.ExtractID(args[0])
	if !ok {
		return usagef("无法识别 IMDb id：%q", args[0])
	}
	return c.withWatchlist(func(a *app, wl *watchlist.Store) error {
		ctx := cmd.Context()
		if has, err := wl.Contains(ctx, id); err != nil {
			return err
		} else if has {
			fmt.Fprintf(c.out, "%s is already in your watchlist.\n", id)
			return nil
		}

		rec, err := a.details().Detail(ctx, id)
		if err != nil {
			return err
		}
		if _, err := wl.Add(ctx, rec); err != nil {
			if errors.Is(err, watchlist.ErrAlreadyPresent) {
				fmt.Fprintf(c.out, "%s is already in your watchlist.\n", rec.ID)
				return nil
			}
			return err
		}
		fmt.Fprintf(c.out, "Saved %s (%s).\n", rec.Title, rec.ID)
		return nil
	})
}

func (c *cli) watchlistRemove(cmd *cobra.Command, args []string) error {
	id := args[0]
	if tid, ok := domain.ExtractID(id); ok {
		id = tid
	}
	return c.withWatchlist(func(_ *app, wl *watchlist.Store) error {
		if err := wl.Remove(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Removed %s.\n", id)
		return nil
	})
}

func (c *cli) watchlistClear(cmd *cobra.Command, _ []string) error {
	return c.withWatchlist(func(_ *app, wl *watchlist.Store) error {
		if err := wl.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Watchlist cleared.")
		return nil
	})
}
