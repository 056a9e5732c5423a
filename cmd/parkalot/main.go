package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"parkalot/internal/auth"
	"parkalot/internal/config"
	"parkalot/internal/housekeeping"
	"parkalot/internal/ics"
	appLog "parkalot/internal/log"
	"parkalot/internal/reservation"
	"parkalot/internal/store/sqlstore"
	"parkalot/internal/web"
)

const version = "0.1.0"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		appLog.Error("command failed", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "parkalot",
		Short:         "Parking spot reservations",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "/etc/parkalot/config.yaml", "Path to config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")

	root.AddCommand(newServeCmd(g), newMigrateCmd(g), newCompleteCmd(g), newUserCmd(g), newFeedCmd(ics.NewFetcher()))
	return root
}

// loadConfig reads the config file and applies the log level.
func loadConfig(g *globalFlags) (*config.Config, error) {
	conf, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", g.configPath, err)
	}
	if g.logLevel != "" {
		conf.LogLevel = g.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	return conf, nil
}

func openStore(conf *config.Config) (*sqlstore.Store, error) {
	return sqlstore.Open(sqlstore.Config{Driver: conf.Database.Driver, DSN: conf.Database.DSN})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server and housekeeping schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(g)
			if err != nil {
				return err
			}
			if listen != "" {
				conf.Listen = listen
			}
			return serve(conf)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func serve(conf *config.Config) error {
	appLog.Info("parkalot starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"database", conf.Database.Driver,
		"housekeeping", conf.Housekeeping,
		"metrics", conf.Metrics,
	)

	st, err := openStore(conf)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			appLog.Warn("close store", "err", err)
		}
	}()

	loc := conf.Location()
	svc := reservation.NewService(st, loc)

	srv, err := web.NewServer(web.Deps{
		Config:       conf,
		Store:        st,
		Reservations: svc,
		Accounts:     auth.NewAccounts(st, conf.BcryptCost),
		Sessions: auth.NewSessions(conf.SessionKey(), auth.SessionOptions{
			MaxAge: conf.Session.MaxAge,
			Secure: conf.Session.Secure,
		}),
		Limiter: auth.NewLimiter(conf.LoginLimit.PerMinute, conf.LoginLimit.Burst),
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if conf.Housekeeping != "off" {
		sched, err := housekeeping.New(conf.Housekeeping, loc, svc)
		if err != nil {
			return err
		}
		go sched.Run(ctx)
	}

	err = srv.Serve(ctx)
	appLog.Info("parkalot exiting")
	return err
}

func newMigrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(g)
			if err != nil {
				return err
			}
			// Open migrates.
			st, err := openStore(conf)
			if err != nil {
				return err
			}
			appLog.Info("schema up to date", "database", conf.Database.Driver)
			return st.Close()
		},
	}
}

func newCompleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "complete",
		Short: "Mark every ended reservation as completed once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(g)
			if err != nil {
				return err
			}
			st, err := openStore(conf)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := reservation.NewService(st, conf.Location()).CompleteEnded(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d reservations completed\n", n)
			return nil
		},
	}
}

func newUserCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var reg auth.Registration
	add := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reg.Email == "" || reg.Password == "" {
				return errors.New("--email and --password are required")
			}
			conf, err := loadConfig(g)
			if err != nil {
				return err
			}
			st, err := openStore(conf)
			if err != nil {
				return err
			}
			defer st.Close()

			u, err := auth.NewAccounts(st, conf.BcryptCost).Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", u.ID, u.Email)
			return nil
		},
	}
	add.Flags().StringVar(&reg.Email, "email", "", "Email address")
	add.Flags().StringVar(&reg.FirstName, "first-name", "", "First name")
	add.Flags().StringVar(&reg.LastName, "last-name", "", "Last name")
	add.Flags().StringVar(&reg.Password, "password", "", "Password")

	cmd.AddCommand(add)
	return cmd
}

func newFeedCmd(fetcher *ics.Fetcher) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Inspect calendar feeds",
	}
	check := &cobra.Command{
		Use:   "check <url|path|->",
		Short: "Parse a calendar feed and list its reservations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := fetcher.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			events, err := ics.ParseFeed(body)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTART\tEND\tSTATUS")
			for _, ev := range events {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", ev.ReservationID,
					ev.Start.UTC().Format(time.RFC3339), ev.End.UTC().Format(time.RFC3339), ev.Status)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d events\n", len(events))
			return nil
		},
	}
	cmd.AddCommand(check)
	return cmd
}
