package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trnahnh/velocity-match/internal/api"
	"github.com/trnahnh/velocity-match/internal/engine"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Recover from the latest snapshot and WAL tail, then start the matching engine and admin HTTP surface",
		RunE:  runRun,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	b, err := newBootstrap()
	if err != nil {
		return err
	}
	defer b.close()

	cfg := engine.Config{
		ArenaCapacity:    b.cfg.Engine.ArenaCapacity,
		RingCapacity:     b.cfg.Engine.RingCapacity,
		SnapshotInterval: b.cfg.Engine.SnapshotInterval,
	}

	eng, err := engine.Recover(cfg, b.walLog, b.snapshots, b.cfg.Snapshot.Dir, b.log)
	if err != nil {
		return wrapf("recover", err)
	}

	publisher, err := b.buildPublisher()
	if err != nil {
		return wrapf("build publisher", err)
	}
	defer publisher.Close()
	eng.SetPublisher(publisher)

	eng.Start()
	defer eng.Stop()

	admin := api.New(eng, b.log)
	server := &http.Server{Addr: b.cfg.API.ListenAddr, Handler: admin.Handler()}

	b.log.Info("velocity-match: running",
		zap.String("admin_addr", b.cfg.API.ListenAddr),
		zap.String("wal_path", b.cfg.Wal.Path),
		zap.String("publisher_transport", b.cfg.Publisher.Transport),
	)

	// TCP order ingestion is an external boundary collaborator (spec
	// §1 Non-goals); this process exposes only the admin surface and
	// the in-process Engine API for an ingestion component to call.
	return server.ListenAndServe()
}
