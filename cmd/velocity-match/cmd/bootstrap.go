package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/trnahnh/velocity-match/internal/config"
	"github.com/trnahnh/velocity-match/internal/publish"
	"github.com/trnahnh/velocity-match/internal/snapshot"
	"github.com/trnahnh/velocity-match/internal/wal"
)

// bootstrap holds the pieces every subcommand needs, built once from
// config so run/recover/snapshot stay consistent about paths and
// resource budgets.
type bootstrap struct {
	cfg       *config.Config
	log       *zap.Logger
	walLog    *wal.Log
	snapshots *snapshot.Writer
}

func newBootstrap() (*bootstrap, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, wrapf("load config", err)
	}

	log, err := config.NewLogger(cfg)
	if err != nil {
		return nil, wrapf("build logger", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Wal.Path), 0o755); err != nil {
		return nil, wrapf("create wal directory", err)
	}
	if err := os.MkdirAll(cfg.Snapshot.Dir, 0o755); err != nil {
		return nil, wrapf("create snapshot directory", err)
	}

	walLog, err := wal.Open(cfg.Wal.Path, log)
	if err != nil {
		return nil, wrapf("open wal", err)
	}

	return &bootstrap{
		cfg:       cfg,
		log:       log,
		walLog:    walLog,
		snapshots: snapshot.NewWriter(cfg.Snapshot.Dir, log),
	}, nil
}

func (b *bootstrap) buildPublisher() (publish.Publisher, error) {
	switch b.cfg.Publisher.Transport {
	case "nats":
		return publish.NewNATSPublisher(b.cfg.Publisher.NATSURL, b.cfg.Publisher.NATSSubject, b.log)
	case "udp", "":
		return publish.NewUDPPublisher(b.cfg.Publisher.UDPAddr, b.log)
	default:
		return nil, fmt.Errorf("velocity-match: unknown publisher transport %q", b.cfg.Publisher.Transport)
	}
}

func (b *bootstrap) close() {
	_ = b.walLog.Close()
	_ = b.log.Sync()
}
