package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/recall/internal/cli"
	"github.com/at-ishikawa/recall/internal/scheduler"
	"github.com/at-ishikawa/recall/internal/statistics"
)

func newReviewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "review <user> <card> <rating>",
		Short: "Record a review of a card rated hard, good or easy",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := scheduler.ParseRating(args[2])
			if err != nil {
				return err
			}

			svc, _, closer, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			rec, err := svc.RecordReview(cmd.Context(), args[0], args[1], rating.String(), time.Now())
			if err != nil {
				return fmt.Errorf("record review: %w", err)
			}
			return cli.NewPrinter(cmd.OutOrStdout()).Review(rec)
		},
	}
}

func newDueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "due <user> <card>...",
		Short: "List the cards that are due for review",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closer, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			due, err := svc.DueCards(cmd.Context(), args[0], args[1:], time.Now())
			if err != nil {
				return fmt.Errorf("list due cards: %w", err)
			}
			return cli.NewPrinter(cmd.OutOrStdout()).DueCards(due, len(args[1:]))
		},
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <user> <card>",
		Short: "Show the scheduling record of a card",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closer, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			rec, err := svc.Record(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("get record: %w", err)
			}
			return cli.NewPrinter(cmd.OutOrStdout()).Record(rec, time.Now())
		},
	}
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user> <card>...",
		Short: "Show the study progress of a set of cards",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closer, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			progress, err := svc.Progress(cmd.Context(), args[0], args[1:], time.Now())
			if err != nil {
				return fmt.Errorf("get progress: %w", err)
			}
			return cli.NewPrinter(cmd.OutOrStdout()).Progress(progress)
		},
	}
}

func newReportCommand() *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "report [user]",
		Short: "Show monthly review activity of every card, or of one user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if month < 0 || month > 12 {
				return fmt.Errorf("--month must be between 1 and 12, got %d", month)
			}
			_, s, closer, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			records, err := s.ListRecords(cmd.Context())
			if err != nil {
				return fmt.Errorf("list records: %w", err)
			}
			if len(args) == 1 {
				filtered := records[:0]
				for _, rec := range records {
					if rec.UserID == args[0] {
						filtered = append(filtered, rec)
					}
				}
				records = filtered
			}
			return cli.NewPrinter(cmd.OutOrStdout()).Statistics(statistics.CalculateStatistics(records, year, month))
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "only count reviews of this year")
	cmd.Flags().IntVar(&month, "month", 0, "only count reviews of this month (1-12)")
	return cmd
}

func newStudyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "study <user> <card>...",
		Short: "Review the due cards of a set one by one",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closer, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			session := cli.NewStudySession(svc, args[0], args[1:], cmd.InOrStdin(), cmd.OutOrStdout())
			_, err = session.Run(cmd.Context())
			return err
		},
	}
}
