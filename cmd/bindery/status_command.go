package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"bindery/internal/catalog"
	"bindery/internal/daemonctl"
	"bindery/internal/ipc"
	"bindery/internal/preflight"
	"bindery/internal/relocation"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, monitoring, journal, and preflight status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.statusSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}
			renderStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print status as JSON")
	return cmd
}

// statusSnapshot asks the daemon for status and falls back to reading the
// catalog directly when no daemon answers.
func (c *commandContext) statusSnapshot(ctx context.Context) (*ipc.StatusResponse, error) {
	if !c.local() {
		client, err := ipc.Dial(c.socketPath())
		if err == nil {
			defer client.Close()
			return client.Status()
		}
		if !daemonctl.IsDaemonUnavailable(err) {
			return nil, wrapDialError(err, c.socketPath())
		}
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	status := &ipc.StatusResponse{DatabasePath: cfg.DatabasePath(), LockPath: cfg.DaemonLockPath()}
	err = c.withStore(func(store *catalog.Store) error {
		pending, err := store.ListPendingMoves(ctx)
		if err != nil {
			return err
		}
		for _, pm := range pending {
			status.PendingMoves = append(status.PendingMoves, ipc.PendingMove{
				BookID:     pm.BookID,
				SourcePath: pm.SourcePath,
				TempPath:   pm.TempPath,
				TargetPath: pm.TargetPath,
				CreatedAt:  pm.CreatedAt,
			})
		}
		for _, r := range preflight.RunAll(ctx, cfg, store) {
			status.Checks = append(status.Checks, ipc.CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
		}
		return nil
	})
	return status, err
}

func renderStatus(out io.Writer, status *ipc.StatusResponse) {
	p := newStatusPrinter(out)

	p.section("Daemon")
	if status.Running {
		detail := fmt.Sprintf("pid %d", status.PID)
		if !status.StartedAt.IsZero() {
			detail += fmt.Sprintf(", up %s", time.Since(status.StartedAt).Round(time.Second))
		}
		p.line("Daemon", statusOK, detail)
		p.line("Monitored libraries", statusInfo, joinIDs(status.MonitoredLibraries))
	} else {
		p.line("Daemon", statusWarn, "not running")
	}
	p.line("Catalog", statusInfo, status.DatabasePath)
	if r := status.LastReconcile; r != nil {
		kind := statusInfo
		if r.Count(relocation.ResolutionFailed) > 0 {
			kind = statusWarn
		}
		p.line("Last reconcile", kind, fmt.Sprintf("%d entries", len(r.Entries)))
	}
	if b := status.LastBatch; b != nil {
		kind := statusOK
		if b.Failed > 0 {
			kind = statusWarn
		}
		p.line("Last batch", kind, fmt.Sprintf("moved %d, skipped %d, failed %d", b.Moved, b.Skipped, b.Failed))
	}
	p.gap()

	p.section("Checks")
	for _, check := range status.Checks {
		p.line(check.Name, checkKind(check.Passed), check.Detail)
	}
	p.gap()

	p.section("Pending Moves")
	if len(status.PendingMoves) == 0 {
		p.text("No pending moves")
		return
	}
	rows := make([][]string, 0, len(status.PendingMoves))
	for _, pm := range status.PendingMoves {
		rows = append(rows, []string{
			strconv.FormatInt(pm.BookID, 10),
			pm.SourcePath,
			pm.TargetPath,
			pm.CreatedAt.Local().Format(time.DateTime),
		})
	}
	p.text("%s", renderTable([]column{
		idColumn("Book"),
		pathColumn("Source"),
		pathColumn("Target"),
		textColumn("Staged At"),
	}, rows))
	p.text("Run `bindery reconcile` to resolve pending moves.")
}
