package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"contentaudit/internal/services/fingerprint"
)

var (
	sigURL      string
	sigText     string
	sigEvidence string
)

// signatureCmd prints the identity an issue would get, to debug why two
// detections did or did not collapse.
var signatureCmd = &cobra.Command{
	Use:   "signature",
	Short: "Compute the signature of an issue",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sigURL == "" {
			return fmt.Errorf("--url is required")
		}
		out := cmd.OutOrStdout()
		dim := color.New(color.Faint).SprintFunc()
		fmt.Fprintf(out, "%s %q\n", dim("text:    "), fingerprint.Normalize(sigText))
		fmt.Fprintf(out, "%s %q\n", dim("evidence:"), fingerprint.Normalize(sigEvidence))
		fmt.Fprintln(out, fingerprint.Signature(sigURL, sigText, sigEvidence))
		return nil
	},
}

func init() {
	signatureCmd.Flags().StringVar(&sigURL, "url", "", "page URL of the issue")
	signatureCmd.Flags().StringVar(&sigText, "text", "", "issue title or description")
	signatureCmd.Flags().StringVar(&sigEvidence, "evidence", "", "evidence snippet")
	rootCmd.AddCommand(signatureCmd)
}
