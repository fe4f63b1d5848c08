package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/quailyquaily/trustops/audit"
	"github.com/quailyquaily/trustops/internal/clifmt"
	"github.com/spf13/cobra"
)

func newAuditCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the audit trail",
	}

	var (
		limit      int
		targetType string
		targetID   string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List entries of the organization, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				var entries []audit.Entry
				if targetType != "" || targetID != "" {
					entries, err = a.trail.ListTarget(cmd.Context(), org, targetType, targetID, limit)
				} else {
					entries, err = a.trail.List(cmd.Context(), org, limit)
				}
				if err != nil {
					return err
				}
				if entries == nil {
					entries = []audit.Entry{}
				}
				return c.render(cmd.OutOrStdout(), entries, func(w io.Writer) { printEntries(w, entries) })
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "maximum number of entries")
	list.Flags().StringVar(&targetType, "target-type", "", "only entries for this target type")
	list.Flags().StringVar(&targetID, "target-id", "", "only entries for this target id")
	cmd.AddCommand(list)
	return cmd
}

func printEntries(w io.Writer, entries []audit.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, clifmt.Dim("no audit entries"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, clifmt.Headerf("TIME\tACTION\tACTOR\tTARGET\tMETADATA"))
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s/%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), e.Action, e.ActorID, e.TargetType, e.TargetID, formatMeta(e.Metadata))
	}
	_ = tw.Flush()
}

func formatMeta(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, meta[k]))
	}
	return strings.Join(parts, " ")
}
