package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "modernc.org/sqlite"

	"github.com/PhucNguyen204/fluentsearch/internal/records"
	srv "github.com/PhucNguyen204/fluentsearch/internal/server"
	"github.com/PhucNguyen204/fluentsearch/pkg/sqlsource"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeDB, err := buildServer(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer closeDB()

			mux := http.NewServeMux()
			s.RegisterRoutes(mux)
			hs := &http.Server{
				Addr:              v.GetString("addr"),
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if qp := v.GetString("queries"); qp != "" && v.GetBool("watch") {
				if err := s.WatchQueries(ctx, qp); err != nil {
					return fmt.Errorf("watch queries: %w", err)
				}
			}
			errc := make(chan error, 1)
			go func() {
				log.Printf("fsearch server listening on %s", hs.Addr)
				errc <- hs.ListenAndServe()
			}()
			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("listen: %w", err)
			case <-ctx.Done():
				log.Printf("shutting down")
				sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return hs.Shutdown(sctx)
			}
		},
	}
	f := cmd.Flags()
	f.String("addr", ":8080", "listen address")
	f.String("db-driver", "postgres", "database driver for --db-dsn: postgres or sqlite")
	f.String("db-dsn", "", "serve records from a SQL table instead of --records")
	f.String("db-table", "records", "table holding the records")
	f.StringSlice("db-columns", nil, "columns to select and search by default")
	f.String("migrations", "", "directory of .sql files run before serving")
	f.Bool("watch", false, "reload --queries when definition files change")
	for _, name := range []string{"addr", "db-driver", "db-dsn", "db-table", "db-columns", "migrations", "watch"} {
		_ = v.BindPFlag(name, f.Lookup(name))
	}
	return cmd
}

// buildServer wires the dataset (memory or SQL) and stored queries from the
// resolved configuration.
func buildServer(ctx context.Context, v *viper.Viper) (*srv.AppServer, func(), error) {
	opts := srv.Options{Workers: v.GetInt("workers")}
	closeDB := func() {}

	if dsn := v.GetString("db-dsn"); dsn != "" {
		driver := v.GetString("db-driver")
		dialect, ok := sqlsource.DialectByName(driver)
		if !ok {
			return nil, closeDB, fmt.Errorf("unsupported db driver %q", driver)
		}
		db, err := sql.Open(dialect.Name(), dsn)
		if err != nil {
			return nil, closeDB, fmt.Errorf("open db: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, closeDB, fmt.Errorf("ping db: %w", err)
		}
		closeDB = func() { db.Close() }
		opts.DB = db
		opts.Dialect = dialect
		opts.Table = v.GetString("db-table")
		opts.Columns = v.GetStringSlice("db-columns")
	} else if path := v.GetString("records"); path != "" {
		recs, err := records.Load(path)
		if err != nil {
			return nil, closeDB, err
		}
		opts.Records = recs
		log.Printf("loaded records from %s: count=%d", path, len(recs))
	}

	s, err := srv.NewAppServer(opts)
	if err != nil {
		closeDB()
		return nil, func() {}, err
	}
	if dir := v.GetString("migrations"); dir != "" {
		n, err := s.RunMigrations(ctx, dir)
		if err != nil {
			closeDB()
			return nil, func() {}, err
		}
		log.Printf("migrations applied from %s: statements=%d", dir, n)
	}
	if qp := v.GetString("queries"); qp != "" {
		if _, err := s.LoadQueriesFromDir(qp); err != nil {
			log.Printf("failed to load queries from %s: %v", qp, err)
		}
	}
	return s, closeDB, nil
}
