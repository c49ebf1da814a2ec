// Command gigctl is a terminal client for the GigHub API. It keeps its
// session between runs and drives orders, payments and chat.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/gighub/internal/config"
	"github.com/sudo-init-do/gighub/internal/gateway"
	"github.com/sudo-init-do/gighub/internal/logger"
	"github.com/sudo-init-do/gighub/internal/session"
)

type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	session *session.Store
	api     *gateway.Client
	closers []func() error
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"register", "-email E -password P -name N -role client|freelancer", cmdRegister},
	{"login", "-email E -password P", cmdLogin},
	{"logout", "", cmdLogout},
	{"whoami", "", cmdWhoami},
	{"gigs", "[-q text] [-category C] [-max-price N] [-mine]", cmdGigs},
	{"gig-create", "-title T -desc D -price N -days N [-category C]", cmdGigCreate},
	{"order", "-gig ID [-requirements text]", cmdOrderCreate},
	{"orders", "[-type all|bought|sold] [-view all|pending|active|completed]", cmdOrders},
	{"show", "-order ID", cmdShow},
	{"act", "-order ID -action A [-reason R] [-rating N] [-comment C]", cmdAct},
	{"watch", "-order ID", cmdWatch},
	{"pay", "-order ID [-listen 127.0.0.1:0]", cmdPay},
	{"pay-return", "-url RETURN_URL", cmdPayReturn},
	{"chat", "-with USER_ID", cmdChat},
	{"conversations", "", cmdConversations},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: gigctl [-config path] <command> [flags]")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", c.name, c.usage)
	}
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	lg := logger.Setup(cfg.Log.Level, true)

	var cmd *command
	for i := range commands {
		if commands[i].name == flag.Arg(0) {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to start client")
	}
	err = cmd.run(ctx, a, flag.Args()[1:])
	a.close()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *config.Config, lg zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: lg}

	var storage session.Storage
	switch cfg.Client.SessionBackend {
	case "", "file":
		storage = session.NewFileStorage(cfg.Client.SessionPath)
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis session backend: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		storage = session.NewRedisStorage(rdb, cfg.Client.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Client.SessionBackend)
	}

	a.session = session.NewStore(storage, lg)
	a.session.Initialize(ctx)

	api, err := gateway.New(cfg.Client.APIBaseURL, a.session,
		gateway.WithTimeout(cfg.Client.Timeout),
		gateway.WithLogger(lg),
		gateway.WithUnauthorizedHandler(func(ctx context.Context) {
			lg.Warn().Msg("session expired, signing out")
			if err := a.session.Logout(ctx); err != nil {
				lg.Error().Err(err).Msg("logout")
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	a.api = api
	return a, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Debug().Err(err).Msg("close")
		}
	}
}

// require gates a command the way role-restricted screens are gated.
func (a *app) require(role string) (*session.Identity, error) {
	st := a.session.State()
	switch session.Guard(st, role) {
	case session.DecisionAllow:
		return st.Identity, nil
	case session.DecisionRedirectHome:
		return nil, fmt.Errorf("this command needs a %s account", role)
	default:
		return nil, errors.New("not signed in, run gigctl login")
	}
}
