package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/fetchkit/pkg/client"
	"github.com/Sternrassler/fetchkit/pkg/debounce"
	"github.com/Sternrassler/fetchkit/pkg/history"
	"github.com/Sternrassler/fetchkit/pkg/observable"
	"github.com/Sternrassler/fetchkit/pkg/request"
)

// openHistory returns the recent-query list, on Redis when configured. An
// unreachable Redis falls back to memory.
func (a *app) openHistory(ctx context.Context) (*history.History, func()) {
	var store history.Store = history.NewMemoryStore()
	closeFn := func() {}

	switch {
	case a.store != nil:
		store = a.store
	case a.cfg.RedisAddr != "":
		rdb := redis.NewClient(&redis.Options{
			Addr: a.cfg.RedisAddr,
			DB:   a.cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			a.logger.Warn().Err(err).Str("addr", a.cfg.RedisAddr).Msg("Redis unavailable, keeping recent queries in memory")
			rdb.Close()
		} else {
			store = history.NewRedisStore(rdb)
			closeFn = func() { rdb.Close() }
		}
	}

	h := history.New(ctx, store,
		history.WithKey(a.cfg.HistoryKey),
		history.WithMaxLength(a.cfg.HistoryMax),
	)
	return h, closeFn
}

func newSearchCmd(a *app) *cobra.Command {
	var params []string
	var queryParam string

	cmd := &cobra.Command{
		Use:   "search <url>",
		Short: "Read queries from stdin, debounce them and print each result",
		Long: "Read one query per line from stdin. Lines arriving within the debounce\n" +
			"delay (FETCHKIT_DEBOUNCE_DELAY) of each other collapse into one request\n" +
			"for the last of them. Successful queries are recorded as recent queries.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := parseParams(params)
			if err != nil {
				return err
			}
			tr, err := a.transport()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			hist, closeHist := a.openHistory(ctx)
			defer closeHist()

			// result is set by the callbacks of the fetch in progress; a
			// transport failure sets neither.
			var result *client.Envelope[json.RawMessage]
			query := observable.NewValue("")
			exec := request.New(tr, request.Descriptor[json.RawMessage]{
				URL: observable.Static(args[0]),
				Params: observable.Func[request.Params](func() request.Params {
					p := maps.Clone(base)
					p[queryParam] = query.Get()
					return p
				}),
				Options: request.Options[json.RawMessage]{
					Trigger:   request.Manual,
					OnSuccess: func(env client.Envelope[json.RawMessage]) { result = &env },
					OnFail:    func(env client.Envelope[json.RawMessage]) { result = &env },
				},
			})

			out := cmd.OutOrStdout()
			var writeErr error
			run := func(q string) {
				result = nil
				query.Set(q)
				exec.Fetch(ctx)

				switch {
				case result == nil:
					a.logger.Warn().Str("query", q).Msg("Search failed")
					return
				case !result.OK():
					a.logger.Warn().
						Str("query", q).
						Int("code", result.Code).
						Str("err_msg", result.ErrMsg).
						Msg("Search rejected")
					return
				}
				hist.AddOne(ctx, q)

				data := result.Data
				if len(data) == 0 {
					data = json.RawMessage("null")
				}
				if _, err := fmt.Fprintf(out, "%s\t", q); err != nil {
					writeErr = err
					return
				}
				if err := writeCompact(out, data); err != nil {
					writeErr = err
				}
			}

			// Fired searches run on this goroutine, between reads.
			jobs := make(chan func(), 1)
			gate := debounce.New(run, a.cfg.DebounceDelay,
				debounce.WithDispatcher(func(f func()) { jobs <- f }),
			)
			defer gate.Stop()

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}()

			for in := lines; in != nil || gate.Pending(); {
				select {
				case line, ok := <-in:
					if !ok {
						in = nil
						continue
					}
					if q := strings.TrimSpace(line); q != "" {
						gate.Trigger(q)
					}
				case job := <-jobs:
					job()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return writeErr
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Extra query parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&queryParam, "query-param", "q", "Parameter carrying the search query")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage recent search queries",
	}

	printList := func(cmd *cobra.Command, list []string) {
		for _, q := range list {
			fmt.Fprintln(cmd.OutOrStdout(), q)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print recent queries, most recent first",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			h, closeFn := a.openHistory(cmd.Context())
			defer closeFn()
			printList(cmd, h.GetAll())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <query>",
		Short: "Record a query as the most recent",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			h, closeFn := a.openHistory(cmd.Context())
			defer closeFn()
			printList(cmd, h.AddOne(cmd.Context(), args[0]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <query>",
		Short: "Forget a query",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			h, closeFn := a.openHistory(cmd.Context())
			defer closeFn()
			printList(cmd, h.RemoveOne(cmd.Context(), args[0]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget all queries",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			h, closeFn := a.openHistory(cmd.Context())
			defer closeFn()
			printList(cmd, h.ClearAll(cmd.Context()))
		},
	})

	return cmd
}
