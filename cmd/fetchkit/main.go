package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/fetchkit/internal/config"
	"github.com/Sternrassler/fetchkit/pkg/client"
	"github.com/Sternrassler/fetchkit/pkg/history"
	"github.com/Sternrassler/fetchkit/pkg/logging"
	"github.com/Sternrassler/fetchkit/pkg/metrics"
	"github.com/Sternrassler/fetchkit/pkg/observable"
	"github.com/Sternrassler/fetchkit/pkg/pagination"
	"github.com/Sternrassler/fetchkit/pkg/request"
)

func main() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// app carries what every sub-command needs once the root has run.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	baseURL     string
	logLevel    string
	metricsAddr string

	metricsSrv *http.Server

	// store overrides the recent-query backend chosen from the config.
	store history.Store
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {

	rootCmd := &cobra.Command{
		Use:           "fetchkit",
		Short:         "Issue envelope-style HTTP requests, page through listings and debounce searches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.shutdown(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.baseURL, "base-url", "", "Base URL of the API (overrides FETCHKIT_BASE_URL)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error, off (overrides FETCHKIT_LOG_LEVEL)")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(newGetCmd(a))
	rootCmd.AddCommand(newScrollCmd(a))
	rootCmd.AddCommand(newSearchCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))

	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	lc := cfg.Logging()
	lc.Output = cmd.ErrOrStderr()
	logging.Setup(lc)
	a.logger = logging.NewLogger(logging.ComponentCLI)

	a.logger.Info().
		Str("base_url", cfg.BaseURL).
		Dur("timeout", cfg.Timeout).
		Bool("redis", cfg.RedisAddr != "").
		Str("command", cmd.Name()).
		Msg("Configuration loaded")

	if a.metricsAddr != "" {
		a.metricsSrv = &http.Server{Addr: a.metricsAddr, Handler: metrics.NewMux()}
		go func() {
			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error().Err(err).Str("addr", a.metricsAddr).Msg("Metrics server failed")
			}
		}()
		a.logger.Info().Str("addr", a.metricsAddr).Msg("Serving metrics")
	}
	return nil
}

func (a *app) shutdown(ctx context.Context) error {
	if a.metricsSrv == nil {
		return nil
	}
	return a.metricsSrv.Shutdown(ctx)
}

func (a *app) transport() (*client.Client, error) {
	return client.New(a.cfg.Client())
}

func newGetCmd(a *app) *cobra.Command {
	var params []string
	var manual bool

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Run one request and print the envelope data",
		Long: "Run one request and print the envelope data.\n\n" +
			"A method token after a colon in the last segment selects the method,\n" +
			"e.g. \"users:post\". Params go into the query for GET and HEAD and into\n" +
			"the JSON body otherwise.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			tr, err := a.transport()
			if err != nil {
				return err
			}

			opts := request.Options[json.RawMessage]{Trigger: request.OnAttach}
			if manual {
				opts.Trigger = request.Manual
			}
			var failure error
			opts.OnFail = func(env client.Envelope[json.RawMessage]) {
				failure = env.Err()
			}

			exec := request.New(tr, request.With(args[0], observable.Static(p), opts))
			<-exec.Attach(cmd.Context())
			if manual {
				exec.Fetch(cmd.Context())
			}

			if exec.Error() {
				return fmt.Errorf("request to %s failed", args[0])
			}
			if failure != nil {
				return failure
			}
			return writeJSON(cmd.OutOrStdout(), exec.Data())
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Request parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&manual, "manual", false, "Do not fetch on attach; issue the fetch explicitly")
	return cmd
}

func newScrollCmd(a *app) *cobra.Command {
	var params []string
	var pages int
	var pageParam string

	cmd := &cobra.Command{
		Use:   "scroll <url>",
		Short: "Page through a {total, list} listing and print one item per line",
		Args:  cobra.ExactArgs(1),
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

			// failure holds the rejection of the most recent page, if any.
			var failure error
			cursor := &pagination.Cursor{}
			exec := request.New(tr, request.Descriptor[pagination.Page[json.RawMessage]]{
				URL: observable.Static(args[0]),
				Params: observable.Func[request.Params](func() request.Params {
					p := maps.Clone(base)
					p[pageParam] = cursor.Page()
					return p
				}),
				Options: request.Options[pagination.Page[json.RawMessage]]{
					OnFail: func(env client.Envelope[pagination.Page[json.RawMessage]]) {
						failure = env.Err()
					},
				},
			})
			coord := pagination.New(exec.DataSource(), cursor, exec.Fetch)
			defer coord.Close()

			checkPage := func() error {
				if exec.Error() {
					return fmt.Errorf("page %d of %s failed", cursor.Page(), args[0])
				}
				if failure != nil {
					return fmt.Errorf("page %d of %s: %w", cursor.Page(), args[0], failure)
				}
				return nil
			}

			out := cmd.OutOrStdout()
			printed := 0
			emit := func() error {
				list := coord.List()
				for _, item := range list[printed:] {
					if err := writeCompact(out, item); err != nil {
						return err
					}
				}
				printed = len(list)
				return nil
			}

			<-exec.Attach(ctx)
			if err := checkPage(); err != nil {
				return err
			}
			if err := emit(); err != nil {
				return err
			}

			fetched := 1
			for pages == 0 || fetched < pages {
				before := len(coord.List())
				if !coord.LoadMore(ctx) {
					break
				}
				fetched++

				if err := checkPage(); err != nil {
					return err
				}
				// A page that adds nothing would leave NoMore false forever.
				if len(coord.List()) == before {
					return fmt.Errorf("page %d of %s returned no items", cursor.Page(), args[0])
				}
				if err := emit(); err != nil {
					return err
				}
			}

			a.logger.Info().
				Int("pages", fetched).
				Int("items", printed).
				Bool("no_more", coord.NoMore()).
				Msg("Scroll finished")
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Extra query parameter as key=value (repeatable)")
	cmd.Flags().IntVar(&pages, "pages", 0, "Maximum number of pages to fetch, 0 for all")
	cmd.Flags().StringVar(&pageParam, "page-param", "page", "Query parameter carrying the 0-based page number")
	return cmd
}

// parseParams turns key=value pairs into params. A repeated key becomes a
// list.
func parseParams(pairs []string) (request.Params, error) {
	p := request.Params{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q, want key=value", pair)
		}
		switch prev := p[key].(type) {
		case nil:
			p[key] = value
		case string:
			p[key] = []string{prev, value}
		case []string:
			p[key] = append(prev, value)
		}
	}
	return p, nil
}

func writeJSON(w io.Writer, data json.RawMessage) error {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("format response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

func writeCompact(w io.Writer, data json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return fmt.Errorf("format item: %w", err)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
