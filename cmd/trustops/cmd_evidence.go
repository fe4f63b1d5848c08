package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/quailyquaily/trustops/evidence"
	"github.com/quailyquaily/trustops/internal/clifmt"
	"github.com/spf13/cobra"
)

func newEvidenceCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Record and review compliance evidence",
	}

	var in evidence.NewItem
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a manually collected evidence item as PENDING",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				items, err := a.evidence.Ingest(cmd.Context(), org, []evidence.NewItem{in})
				if err != nil {
					return err
				}
				it := items[0]
				return c.render(cmd.OutOrStdout(), it, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s %q\n", clifmt.Success("added"), it.ID, it.Title)
				})
			})
		},
	}
	add.Flags().StringVar(&in.Title, "title", "", "evidence title")
	add.Flags().StringVar(&in.ControlID, "control", "", "control id, e.g. CC6.1")
	add.Flags().StringVar(&in.Source, "source", "manual", "where the evidence came from")
	add.Flags().StringVar(&in.SourceRef, "source-ref", "", "link or path to the evidence")
	add.Flags().StringVar(&in.IntegrationID, "integration", "", "integration that produced it")
	_ = add.MarkFlagRequired("title")

	approve := &cobra.Command{
		Use:   "approve <id>",
		Short: "Mark an item APPROVED",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				it, err := a.evidence.Approve(cmd.Context(), org, args[0], c.actorID())
				return c.settle(cmd.OutOrStdout(), it, err, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s\n", clifmt.Success("approved"), it.ID)
				})
			})
		},
	}

	var reason string
	reject := &cobra.Command{
		Use:   "reject <id>",
		Short: "Mark an item REJECTED",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				it, err := a.evidence.Reject(cmd.Context(), org, args[0], c.actorID(), reason)
				return c.settle(cmd.OutOrStdout(), it, err, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s\n", clifmt.Warn("rejected"), it.ID)
				})
			})
		},
	}
	reject.Flags().StringVar(&reason, "reason", "", "why the evidence is rejected")

	var (
		status string
		limit  int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List evidence of the organization, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				items, err := a.evidence.List(cmd.Context(), org, evidence.ReviewStatus(strings.ToUpper(status)), limit)
				if err != nil {
					return err
				}
				if items == nil {
					items = []evidence.Item{}
				}
				return c.render(cmd.OutOrStdout(), items, func(w io.Writer) { printEvidence(w, items) })
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "PENDING, APPROVED or REJECTED")
	list.Flags().IntVar(&limit, "limit", 0, "maximum number of items (0 for all)")

	cmd.AddCommand(add, approve, reject, list)
	return cmd
}

func printEvidence(w io.Writer, items []evidence.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, clifmt.Dim("no evidence"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, clifmt.Headerf("ID\tSTATUS\tCONTROL\tTITLE\tSOURCE"))
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.ReviewStatus, it.ControlID, it.Title, it.Source)
	}
	_ = tw.Flush()
}
