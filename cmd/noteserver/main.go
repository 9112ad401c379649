package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/gops/agent"
	"github.com/nicolagi/notestore/server"
	"github.com/nicolagi/notestore/storage"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand(run).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand returns the command line interface, handing the checked
// configuration to serve.
func newRootCommand(serve func(*config) error) *cobra.Command {
	var (
		configFile string
		fromFlags  config
	)
	cmd := &cobra.Command{
		Use:          "noteserver",
		Short:        "Serve plain-text notes kept as files in a directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := resolveConfig(cmd.Flags(), configFile, fromFlags)
			if err != nil {
				return err
			}
			return serve(c)
		},
	}
	flags := cmd.Flags()
	// Defined here so that cobra does not claim -h, which is the host.
	flags.Bool("help", false, "help for noteserver")
	flags.StringVarP(&fromFlags.Host, "host", "h", "", "host to bind to (required)")
	flags.IntVarP(&fromFlags.Port, "port", "p", 0, "port to listen on (required)")
	flags.StringVarP(&fromFlags.Cache, "cache", "c", "", "directory holding the notes (required)")
	flags.StringVar(&configFile, "config", "", "location of an optional configuration file")
	flags.BoolVar(&fromFlags.Debug, "debug", false, "log at debug level")
	flags.BoolVar(&fromFlags.Metrics, "metrics", false, "serve Prometheus metrics at /metrics")
	flags.BoolVar(&fromFlags.Gops, "gops", false, "start a gops diagnostics agent")
	return cmd
}

func run(c *config) error {
	if c.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if c.Gops {
		if err := agent.Listen(agent.Options{
			ShutdownCleanup: true,
		}); err != nil {
			log.WithField("err", err).Warn("Could not start gops agent")
		} else {
			defer agent.Close()
		}
	}

	if err := os.MkdirAll(c.Cache, 0700); err != nil {
		return fmt.Errorf("could not ensure directory %q exists: %w", c.Cache, err)
	}
	var store storage.Store = storage.NewDiskStore(c.Cache)
	log.Infof("Will use a disk-based backend storing notes at %s", c.Cache)

	if c.Mirror != nil {
		replica, closeReplica, err := newReplica(c.Mirror)
		if err != nil {
			return err
		}
		defer closeReplica()
		mirror := storage.NewMirror(store, replica, storage.WithRate(c.Mirror.Rate))
		// Runs before closeReplica, flushing pending changes.
		defer mirror.Close()
		store = mirror
		log.WithField("kind", c.Mirror.Kind).Info("Mirroring changes to replica")
	}

	opts := []server.Option{
		server.WithAddress(net.JoinHostPort(c.Host, strconv.Itoa(c.Port))),
		server.WithStore(store),
		server.WithMetrics(c.Metrics),
	}
	if c.MaxBodySize > 0 {
		opts = append(opts, server.WithMaxBodySize(c.MaxBodySize))
	}
	srv := server.New(opts...)
	addr, err := srv.Listen()
	if err != nil {
		return fmt.Errorf("could not listen: %w", err)
	}
	log.WithField("addr", addr).Infof("Server running at http://%s", addr)

	// Shutdown makes Serve return, letting the deferred clean-up run.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigc
		log.WithField("signal", sig).Info("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithField("err", err).Warn("Could not shut down the server cleanly")
		}
	}()

	return srv.Serve()
}

func newReplica(mc *mirrorConfig) (replica storage.Replica, closeFn func(), err error) {
	switch mc.Kind {
	case "bolt":
		db, err := bolt.Open(mc.Path, 0600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, nil, fmt.Errorf("could not open database %q: %w", mc.Path, err)
		}
		br, err := storage.NewBoltReplica(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("could not instantiate boltdb replica at %q: %w", mc.Path, err)
		}
		return br, func() {
			if err := db.Close(); err != nil {
				log.Warnf("Could not close boltdb database: %v", err)
			}
		}, nil
	case "s3":
		return storage.NewS3Replica(mc.Profile, mc.Region, mc.Bucket, mc.Prefix), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown mirror kind %q", mc.Kind)
	}
}
