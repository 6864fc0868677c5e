package cmd

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	var addr string
	c := &cobra.Command{
		Use:   "snapshot",
		Short: "Force an out-of-band snapshot of a running instance via its admin HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(addr)
		},
	}
	c.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8080", "admin HTTP address of the running instance")
	return c
}

func runSnapshot(addr string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(addr+"/snapshot", "application/json", nil)
	if err != nil {
		return wrapf("request snapshot", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("velocity-match: snapshot request failed: %s: %s", resp.Status, string(body))
	}
	fmt.Println(string(body))
	return nil
}
