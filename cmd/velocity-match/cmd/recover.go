package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trnahnh/velocity-match/internal/engine"
)

func newRecoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Run crash recovery to completion and print the resulting book summary, without starting ingestion",
		RunE:  runRecover,
	}
}

func runRecover(cmd *cobra.Command, args []string) error {
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

	book := eng.Book()
	bestBid, hasBid := book.BestBid()
	bestAsk, hasAsk := book.BestAsk()

	fmt.Printf("resting_orders=%d seq=%d", book.RestingOrders(), book.Seq())
	if hasBid {
		fmt.Printf(" best_bid=%d", bestBid)
	}
	if hasAsk {
		fmt.Printf(" best_ask=%d", bestAsk)
	}
	fmt.Println()
	return nil
}
