package main

import (
	"encoding/base64"
	"fmt"

	"github.com/quailyquaily/trustops/internal/clifmt"
	"github.com/quailyquaily/trustops/secrets"
	"github.com/spf13/cobra"
)

func newKeygenCmd(c *cli) *cobra.Command {
	var asBase64 bool
	cmd := &cobra.Command{
		Use:         "keygen",
		Short:       "Generate a random 256-bit encryption key",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipCodecAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secrets.GenerateKey()
			if err != nil {
				return err
			}
			s := secrets.FormatKey(key)
			if asBase64 {
				s = base64.StdEncoding.EncodeToString(key)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, s)
			fmt.Fprintln(cmd.ErrOrStderr(), clifmt.Dim("set it as encryption.key or export TRUSTOPS_ENCRYPTION_KEY"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asBase64, "base64", false, "print the key as base64 instead of hex")
	return cmd
}
