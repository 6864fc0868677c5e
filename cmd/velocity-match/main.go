// Command velocity-match bootstraps the matching engine as a
// standalone process: it owns no matching logic of its own, only
// construction and wiring.
package main

import (
	"fmt"
	"os"

	"github.com/trnahnh/velocity-match/cmd/velocity-match/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
