package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/quailyquaily/trustops/integrations"
	"github.com/quailyquaily/trustops/internal/clifmt"
	"github.com/spf13/cobra"
)

func newIntegrationCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "integration",
		Aliases: []string{"integrations"},
		Short:   "Manage GitHub and AWS connections",
	}
	cmd.AddCommand(
		newIntegrationConnectCmd(c),
		newIntegrationShowCmd(c),
		newIntegrationListCmd(c),
		newIntegrationDisconnectCmd(c),
	)
	return cmd
}

func newIntegrationConnectCmd(c *cli) *cobra.Command {
	var (
		provider   string
		token      string
		githubOrg  string
		repos      []string
		roleARN    string
		externalID string
		region     string
		accountID  string
	)
	cmd := &cobra.Command{
		Use:   "connect <id>",
		Short: "Connect or reconnect an integration",
		Long: "Connect stores the provider config with the access token sealed.\n" +
			"Pass --access-token - to type the GitHub token without echo.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			raw := map[string]any{}
			switch strings.ToUpper(provider) {
			case string(integrations.ProviderGitHub):
				if token == "-" {
					if token, err = readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "access token: "); err != nil {
						return err
					}
				}
				raw["accessToken"] = token
				raw["org"] = githubOrg
				raw["repos"] = repos
			case string(integrations.ProviderAWS):
				raw["roleArn"] = roleARN
				raw["externalId"] = externalID
				raw["region"] = region
				raw["accountId"] = accountID
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				in, err := a.integrations.Connect(cmd.Context(), org, args[0], provider, c.actorID(), raw)
				return c.settle(cmd.OutOrStdout(), in, err, func(w io.Writer) { printIntegration(w, in) })
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&provider, "provider", "", "GITHUB or AWS")
	f.StringVar(&token, "access-token", "", "GitHub access token, - to prompt")
	f.StringVar(&githubOrg, "github-org", "", "GitHub organization")
	f.StringSliceVar(&repos, "repo", nil, "GitHub repository (repeatable)")
	f.StringVar(&roleARN, "role-arn", "", "AWS role ARN to assume")
	f.StringVar(&externalID, "external-id", "", "AWS external id")
	f.StringVar(&region, "region", "", "AWS region")
	f.StringVar(&accountID, "account-id", "", "AWS account id")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func newIntegrationShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one integration with its token masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				in, err := a.integrations.Get(cmd.Context(), org, args[0])
				if err != nil {
					return err
				}
				return c.render(cmd.OutOrStdout(), in, func(w io.Writer) { printIntegration(w, in) })
			})
		},
	}
}

func newIntegrationListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List integrations of the organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				list, err := a.integrations.List(cmd.Context(), org)
				if err != nil {
					return err
				}
				return c.render(cmd.OutOrStdout(), list, func(w io.Writer) {
					if len(list) == 0 {
						fmt.Fprintln(w, clifmt.Dim("no integrations"))
						return
					}
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, clifmt.Headerf("ID\tPROVIDER\tSTATUS\tLAST SYNC"))
					for _, in := range list {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", in.ID, in.Provider, in.Status, lastSync(in))
					}
					_ = tw.Flush()
				})
			})
		},
	}
}

func newIntegrationDisconnectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <id>",
		Short: "Disconnect an integration and drop its stored config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.orgID()
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				in, err := a.integrations.Disconnect(cmd.Context(), org, args[0], c.actorID())
				return c.settle(cmd.OutOrStdout(), in, err, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s\n", clifmt.Warn("disconnected"), in.ID)
				})
			})
		},
	}
}

func printIntegration(w io.Writer, in integrations.Integration) {
	fmt.Fprintf(w, "%s %s\n", clifmt.Key("id:"), in.ID)
	fmt.Fprintf(w, "%s %s\n", clifmt.Key("provider:"), in.Provider)
	fmt.Fprintf(w, "%s %s\n", clifmt.Key("status:"), clifmt.Status(string(in.Status)))
	fmt.Fprintf(w, "%s %s\n", clifmt.Key("last sync:"), lastSync(in))
	if in.LastError != "" {
		fmt.Fprintf(w, "%s %s\n", clifmt.Key("last error:"), in.LastError)
	}
	if cfg := in.Config; cfg != nil {
		switch in.Provider {
		case integrations.ProviderGitHub:
			fmt.Fprintf(w, "%s %s\n", clifmt.Key("access token:"), cfg.AccessToken)
			fmt.Fprintf(w, "%s %s\n", clifmt.Key("org:"), cfg.Org)
			fmt.Fprintf(w, "%s %s\n", clifmt.Key("repos:"), strings.Join(cfg.Repos, ", "))
		case integrations.ProviderAWS:
			fmt.Fprintf(w, "%s %s\n", clifmt.Key("role arn:"), cfg.RoleARN)
			fmt.Fprintf(w, "%s %s\n", clifmt.Key("region:"), cfg.Region)
			fmt.Fprintf(w, "%s %s\n", clifmt.Key("account:"), cfg.AccountID)
		}
	}
}

func lastSync(in integrations.Integration) string {
	if in.LastSyncAt == nil {
		return "never"
	}
	return in.LastSyncAt.Format(time.RFC3339)
}
