package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/quailyquaily/trustops/internal/clifmt"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newSecretCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Encrypt, decrypt and reseal secret payloads",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "encrypt [plaintext]",
		Short: "Seal a value; reads stdin (hidden on a terminal) when no argument is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plain string
			if len(args) == 1 {
				plain = args[0]
			} else {
				s, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "value: ")
				if err != nil {
					return err
				}
				plain = s
			}
			wire, err := c.codec.EncryptString(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), wire)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "decrypt <payload>",
		Short: "Open an enc:, plain: or legacy payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plain, err := c.codec.DecryptString(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plain)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reseal <payload>",
		Short: "Re-encrypt a plain: or legacy payload with the configured key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wire, changed, err := c.codec.Reseal(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), wire)
			if !changed {
				fmt.Fprintln(cmd.ErrOrStderr(), clifmt.Dim("unchanged (already encrypted or no key configured)"))
			}
			return nil
		},
	})
	return cmd
}

// readSecret reads one value without echo when in is a terminal, otherwise
// the whole input with the trailing newline removed.
func readSecret(in io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}
