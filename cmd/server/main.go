package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sorajate/soliloque-server/pkg/boltstore"
	"github.com/sorajate/soliloque-server/pkg/chandb"
	"github.com/sorajate/soliloque-server/pkg/events"
	"github.com/sorajate/soliloque-server/pkg/server"
	"github.com/sorajate/soliloque-server/pkg/sqlstore"
)

// logSubscriber writes structural events to the debug log.
type logSubscriber struct {
	log *logrus.Logger
}

func (l *logSubscriber) Receive(ev events.Event) {
	switch {
	case ev.Player != nil && ev.Channel != nil:
		l.log.Debugf("event %s: player %d, channel %d %q",
			ev.Type, ev.Player.PublicID, ev.Channel.ID, ev.Channel.Name)
	case ev.Channel != nil:
		l.log.Debugf("event %s: channel %d %q", ev.Type, ev.Channel.ID, ev.Channel.Name)
	default:
		l.log.Debugf("event %s", ev.Type)
	}
}

func (l *logSubscriber) Closed() bool { return false }

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("SOLILOQUE_CONF", "soliloque.yaml"), "Path to server config file (env: SOLILOQUE_CONF)")
	boltPath := flag.String("bolt", envDefault("SOLILOQUE_BOLT", ""), "Path to bbolt persistent database, overrides config (env: SOLILOQUE_BOLT)")
	sqlPath := flag.String("sqldb", envDefault("SOLILOQUE_SQLDB", ""), "Path to SQLite privilege database, overrides config (env: SOLILOQUE_SQLDB)")
	metricsAddr := flag.String("metrics", envDefault("SOLILOQUE_METRICS", ""), "Prometheus metrics listen address, overrides config (env: SOLILOQUE_METRICS)")
	debug := flag.Bool("debug", os.Getenv("SOLILOQUE_DEBUG") == "true", "Enable debug logging (env: SOLILOQUE_DEBUG)")
	flag.Parse()

	log := logrus.New()
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}

	conf, err := server.LoadConf(*confFile)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *boltPath != "" {
		conf.BoltPath = *boltPath
	}
	if *sqlPath != "" {
		conf.SQLPath = *sqlPath
	}
	if *metricsAddr != "" {
		conf.MetricsAddr = *metricsAddr
	}

	var privStore chandb.PrivilegeStore
	var chanStore server.ChannelStore

	switch {
	case conf.SQLPath != "":
		st, err := sqlstore.Open(conf.SQLPath)
		if err != nil {
			log.Fatalf("opening sqlite store: %v", err)
		}
		defer st.Close()
		privStore = st
		log.Infof("Privilege store: sqlite %s", st.Path())
	case conf.BoltPath != "":
		st, err := boltstore.Open(conf.BoltPath)
		if err != nil {
			log.Fatalf("opening bolt store: %v", err)
		}
		defer st.Close()
		privStore = st
		chanStore = st
		log.Infof("Privilege store: bolt %s", st.Path())
	default:
		log.Warnf("No persistence configured, privileges are in-memory only")
	}

	srv := server.New(conf.ServerName, conf.Machine, privStore, log)
	if conf.Password != "" {
		if err := srv.SetPassword(chandb.HashPassword(conf.Password)); err != nil {
			log.Fatalf("setting server password: %v", err)
		}
	}
	metrics := server.NewMetrics(time.Now())
	srv.UseMetrics(metrics)

	bus := events.NewBus()
	bus.Subscribe(&logSubscriber{log: log})
	srv.UseBus(bus)

	if chanStore != nil {
		srv.UseChannelStore(chanStore)
		if err := srv.Restore(chanStore); err != nil {
			log.Fatalf("restoring channel tree: %v", err)
		}
	}
	if srv.Channels.Used() == 0 {
		if err := conf.ApplyChannels(srv); err != nil {
			log.Fatalf("building configured channels: %v", err)
		}
	}
	if srv.DefaultChannel() == nil {
		def := chandb.NewPredefChannel()
		def.Flags |= chandb.FlagDefault
		if err := srv.AddChannel(def); err != nil {
			log.Fatalf("adding default channel: %v", err)
		}
	}

	log.Infof("Server %q on %s, %d channels, port %d",
		srv.Name, srv.Machine, srv.Channels.Used(), conf.Port)
	for _, ch := range srv.Channels.Items() {
		ch.LogTo(log)
	}

	if conf.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			log.Infof("Metrics on http://%s/metrics", conf.MetricsAddr)
			if err := http.ListenAndServe(conf.MetricsAddr, mux); err != nil {
				log.Errorf("metrics listener: %v", err)
			}
		}()
	}

	// The UDP protocol front-end attaches here; until it lands the process
	// just serves metrics and holds the channel tree.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	fmt.Fprintln(os.Stderr)
	log.Infof("Caught %v, shutting down", s)
}
