package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-sufi-platform/internal/jobs"
	"github.com/tbourn/go-sufi-platform/internal/repo"
	"github.com/tbourn/go-sufi-platform/internal/services"
)

func newSweepCmd(e *env) *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "sweep-messages",
		Short: "Purge messages deleted by both participants",
		Long: `Deletes messages that both the sender and the recipient removed and
that are older than the retention window (MESSAGE_RETENTION, 30 days by
default). Expired Idempotency-Key records are purged as well. Running it
twice is harmless.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(e.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close(db) }()

			if !cmd.Flags().Changed("retention") {
				retention = e.cfg.MessageRetention
			}
			s := &jobs.Sweeper{
				Messages: &services.MessageService{DB: db, Retention: retention},
				DB:       db,
			}
			res, err := s.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d messages and %d idempotency keys\n", res.Messages, res.Idempotency)
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "override MESSAGE_RETENTION for this run")
	return cmd
}

func newReconcileCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-likes",
		Short: "Recount likes and repair drifted like_count columns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(e.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close(db) }()

			fixed, err := (&services.LikeService{DB: db}).Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fixed %d like counters\n", fixed)
			return nil
		},
	}
}
