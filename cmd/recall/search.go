package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrypster/recall/internal/store"
	"github.com/scrypster/recall/pkg/types"
)

func newSearchCmd() *cobra.Command {
	var (
		limit     int
		threshold float64
		hybrid    bool
		category  string
		tags      []string
		memTypes  []string
		minImp    float64
	)

	cmd := &cobra.Command{
		Use:   "search <user-id> <query>",
		Short: "Search a user's memories",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			q := store.Query{
				UserID:        args[0],
				Text:          strings.Join(args[1:], " "),
				Limit:         limit,
				Threshold:     threshold,
				Category:      category,
				Tags:          tags,
				MinImportance: minImp,
			}
			for _, t := range memTypes {
				q.Types = append(q.Types, types.MemoryType(t))
			}

			var results []store.Result
			if hybrid {
				results, err = e.svc.HybridSearch(cmd.Context(), q)
			} else {
				results, err = e.svc.Search(cmd.Context(), q)
			}
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("No matches.")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%2d. [%.3f] (%s, imp %.2f) %s\n",
					r.Rank, r.Score, r.Record.Type, r.Record.Importance, r.Record.Content)
				fmt.Printf("      id=%s\n", r.Record.ID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum cosine similarity")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "fuse with keyword index ranking")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "filter by tags (all must match)")
	cmd.Flags().StringSliceVar(&memTypes, "types", nil, "filter by memory tiers")
	cmd.Flags().Float64Var(&minImp, "min-importance", 0, "filter by minimum importance")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			st := e.svc.Statistics()
			fmt.Printf("Records:            %d\n", st.TotalRecords)
			fmt.Printf("Users:              %d\n", st.UserCount)
			fmt.Printf("Average importance: %.3f\n", st.AverageImportance)
			for _, t := range types.ValidMemoryTypes {
				if n := st.TypeDistribution[t]; n > 0 {
					fmt.Printf("  %-12s %d\n", t, n)
				}
			}
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep <user-id>",
		Short: "Run one lifecycle sweep for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			report, err := e.svc.EvaluateLifecycle(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("upgraded=%d downgraded=%d deleted=%d unchanged=%d\n",
				report.Upgraded, report.Downgraded, report.Deleted, report.Unchanged)
			return nil
		},
	}
}
