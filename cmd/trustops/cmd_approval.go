package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/quailyquaily/trustops/approvals"
	"github.com/quailyquaily/trustops/internal/clifmt"
	"github.com/spf13/cobra"
)

func newApprovalCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "approval",
		Aliases: []string{"approvals"},
		Short:   "Review AI-generated artifacts",
	}
	cmd.AddCommand(
		newApprovalCreateCmd(c),
		newApprovalDecideCmd(c),
		newApprovalReviseCmd(c),
		newApprovalPendingCmd(c),
		newApprovalShowCmd(c),
	)
	return cmd
}

func newApprovalCreateCmd(c *cli) *cobra.Command {
	var typ, content, contentFile string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a new pending artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			body, err := contentArg(cmd.InOrStdin(), content, contentFile)
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				ap, err := a.approvals.Create(cmd.Context(), approvals.CreateInput{
					OrgID:       org,
					Type:        typ,
					Content:     body,
					RequestedBy: c.actorID(),
				})
				if err != nil {
					return err
				}
				return c.render(cmd.OutOrStdout(), ap, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s (%s)\n", clifmt.Success("created"), ap.ID, ap.Type)
				})
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", approvals.TypeGapAnalysis, "artifact type, e.g. gap_analysis or policy_draft")
	cmd.Flags().StringVar(&content, "content", "", "artifact content")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "read content from a file, - for stdin")
	return cmd
}

func newApprovalDecideCmd(c *cli) *cobra.Command {
	var action, notes string
	cmd := &cobra.Command{
		Use:   "decide <id>",
		Short: "Approve, reject or request revision of a pending artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				ap, err := a.approvals.Decide(cmd.Context(), org, args[0], action, c.actorID(), notes)
				return c.settle(cmd.OutOrStdout(), ap, err, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s -> %s\n", clifmt.Success("decided"), ap.ID, clifmt.Status(string(ap.Status)))
				})
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "approve, reject or request_revision")
	cmd.Flags().StringVar(&notes, "notes", "", "review notes")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func newApprovalReviseCmd(c *cli) *cobra.Command {
	var content, contentFile string
	cmd := &cobra.Command{
		Use:   "revise <id>",
		Short: "Submit new content for an artifact sent back for revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			body, err := contentArg(cmd.InOrStdin(), content, contentFile)
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				ap, err := a.approvals.Revise(cmd.Context(), org, args[0], body, c.actorID())
				if err != nil {
					return err
				}
				return c.render(cmd.OutOrStdout(), ap, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s supersedes %s\n", clifmt.Success("revised"), ap.ID, ap.Supersedes)
				})
			})
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "revised content")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "read content from a file, - for stdin")
	return cmd
}

func newApprovalPendingCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List pending artifacts of the organization, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				list, err := a.approvals.List(cmd.Context(), approvals.Filter{OrgID: org, Status: approvals.StatusPending})
				if err != nil {
					return err
				}
				if list == nil {
					list = []approvals.Approval{}
				}
				return c.render(cmd.OutOrStdout(), list, func(w io.Writer) { printApprovals(w, list) })
			})
		},
	}
}

func newApprovalShowCmd(c *cli) *cobra.Command {
	var decode bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				ap, err := a.approvals.Get(cmd.Context(), org, args[0])
				if err != nil {
					return err
				}
				if decode {
					var payload any
					if err := approvals.DecodeContent(ap, &payload); err != nil {
						return err
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(payload)
				}
				return c.render(cmd.OutOrStdout(), ap, func(w io.Writer) { printApproval(w, ap) })
			})
		},
	}
	cmd.Flags().BoolVar(&decode, "decode", false, "print only the JSON payload found in the content")
	return cmd
}

func printApprovals(w io.Writer, list []approvals.Approval) {
	if len(list) == 0 {
		fmt.Fprintln(w, clifmt.Dim("no pending approvals"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, clifmt.Headerf("ID\tTYPE\tCREATED\tCONTENT"))
	for _, ap := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ap.ID, ap.Type, ap.CreatedAt.Format(time.RFC3339), approvals.Preview(ap, 60))
	}
	_ = tw.Flush()
}

func printApproval(w io.Writer, ap approvals.Approval) {
	fmt.Fprintf(w, "%s %s\n", clifmt.Key("id:"), ap.ID)
	fmt.Fprintf(w, "%s %s\n", clifmt.Key("type:"), ap.Type)
	fmt.Fprintf(w, "%s %s\n", clifmt.Key("status:"), clifmt.Status(string(ap.Status)))
	if ap.Supersedes != "" {
		fmt.Fprintf(w, "%s %s\n", clifmt.Key("supersedes:"), ap.Supersedes)
	}
	if ap.DecidedAt != nil {
		fmt.Fprintf(w, "%s %s by %s\n", clifmt.Key("decided:"), ap.DecidedAt.Format(time.RFC3339), ap.ReviewerID)
	}
	if ap.ReviewNotes != "" {
		fmt.Fprintf(w, "%s %s\n", clifmt.Key("notes:"), ap.ReviewNotes)
	}
	fmt.Fprintln(w, ap.Content)
}

func contentArg(stdin io.Reader, content, file string) (string, error) {
	switch file {
	case "":
		return content, nil
	case "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read content: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(b), nil
}
