package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hanpama/scidbgo"
	"github.com/hanpama/scidbgo/internal/config"
	"github.com/hanpama/scidbgo/internal/eventbus"
	"github.com/hanpama/scidbgo/internal/logging"
	"github.com/hanpama/scidbgo/internal/metrics"
	"github.com/hanpama/scidbgo/internal/otel"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	defer a.close()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// app holds what PersistentPreRunE sets up for the subcommands.
type app struct {
	db      *scidbgo.DB
	logger  log.Logger
	cleanup []func()
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "scidbq",
		Short:         "Query an array database through its HTTP gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		queryCmd(a),
		fetchCmd(a),
		linesCmd(a),
		showCmd(a),
		uploadCmd(a),
		arraysCmd(a),
		operatorsCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	a.logger, err = logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}

	eventbus.Use(eventbus.New())
	a.cleanup = append(a.cleanup, func() { eventbus.Use(nil) })

	shutdown, err := otel.Setup(cfg.OtelEndpoint, cfg.OtelService)
	if err != nil {
		return errors.Wrap(err, "otel setup")
	}
	a.cleanup = append(a.cleanup, func() { _ = shutdown(context.Background()) })

	reg := prometheus.NewRegistry()
	_, unregister := metrics.Register(reg)
	a.cleanup = append(a.cleanup, unregister)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				level.Warn(a.logger).Log("msg", "metrics server stopped", "err", err)
			}
		}()
		a.cleanup = append(a.cleanup, func() { _ = srv.Close() })
	}

	opts := append(cfg.Options(), scidbgo.WithLogger(a.logger))
	a.db, err = scidbgo.Connect(cmd.Context(), cfg.URL, opts...)
	if err != nil {
		return errors.Wrapf(err, "connect %s", cfg.URL)
	}
	level.Debug(a.logger).Log("msg", "connected", "url", a.db.URL(), "operators", len(a.db.Operators()))
	return nil
}

func queryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <afl>",
		Short: "Execute a query without downloading a result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.db.Query(cmd.Context(), args[0])
		},
	}
}

func fetchCmd(a *app) *cobra.Command {
	var (
		attsOnly bool
		promote  bool
		schema   string
	)
	cmd := &cobra.Command{
		Use:   "fetch <afl>",
		Short: "Execute a query and print its result as TSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []scidbgo.FetchOption
			if attsOnly {
				opts = append(opts, scidbgo.AttsOnly())
			}
			if promote {
				opts = append(opts, scidbgo.Promote())
			}
			if schema != "" {
				s, err := scidbgo.ParseSchema(schema)
				if err != nil {
					return err
				}
				opts = append(opts, scidbgo.WithSchema(s))
			}
			rec, err := a.db.Fetch(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			defer rec.Release()
			return writeTSV(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().BoolVar(&attsOnly, "atts-only", false, "Leave dimensions out of the result")
	cmd.Flags().BoolVar(&promote, "promote", false, "Print nulls instead of {null code, value} pairs")
	cmd.Flags().StringVar(&schema, "schema", "", "Result schema; skips asking the server")
	return cmd
}

func writeTSV(w io.Writer, rec arrow.Record) error {
	names := make([]string, rec.NumCols())
	for i := range names {
		names[i] = rec.ColumnName(i)
	}
	if _, err := fmt.Fprintln(w, strings.Join(names, "\t")); err != nil {
		return err
	}
	cells := make([]string, rec.NumCols())
	for row := 0; row < int(rec.NumRows()); row++ {
		for i, col := range rec.Columns() {
			cells[i] = col.ValueStr(row)
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func linesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lines <afl>",
		Short: "Execute a query and print its result as server-formatted TSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := a.db.ReadLines(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(l, "\t"))
			}
			return nil
		},
	}
}

func showCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <afl>",
		Short: "Print the schema of a query's result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.db.Show(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), scidbgo.RenderSchema(s))
			return nil
		},
	}
}

func uploadCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "upload <afl-template> <file>",
		Short: "Upload a binary file and run a query reading it",
		Long: `Upload posts the file to the gateway, then runs the template with
'{file}' (or {}) replaced by the server file token and {instance} by 0.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			template := args[0]
			if format != "" {
				template = strings.ReplaceAll(template, "{format}", format)
			}
			return a.db.Upload(cmd.Context(), template, data)
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Value for the '{format}' placeholder, e.g. (int64,double null)")
	return cmd
}

func arraysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "arrays",
		Short: "List arrays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.db.Arrays(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func operatorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List the operators the server provides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, n := range a.db.Operators() {
				op, err := a.db.Op(n)
				if err != nil {
					return err
				}
				kind := "lazy"
				if op.Hungry {
					kind = "hungry"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", op.Name, kind, op.Arity)
			}
			return nil
		},
	}
}
