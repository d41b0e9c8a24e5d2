package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/sakif/codecraft/internal/config"
	"github.com/sakif/codecraft/internal/webhook"
)

// NewSignWebhookCommand signs a payload file the way a provider would and
// prints the headers, so deliveries can be replayed against a local server:
//
//	codecraft sign-webhook --provider clerk payload.json
func NewSignWebhookCommand() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "sign-webhook <payload-file>",
		Short: "Print signature headers for a webhook payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch provider {
			case "clerk":
				if cfg.ClerkWebhookSecret == "" {
					return errors.New("CLERK_WEBHOOK_SECRET is not set")
				}
				id := "msg_" + xid.New().String()
				now := time.Now()
				sig, err := webhook.SignClerk(cfg.ClerkWebhookSecret, id, now, body)
				if err != nil {
					return fmt.Errorf("signing: %w", err)
				}
				fmt.Fprintf(out, "%s: %s\n", webhook.HeaderSvixID, id)
				fmt.Fprintf(out, "%s: %s\n", webhook.HeaderSvixTimestamp, strconv.FormatInt(now.Unix(), 10))
				fmt.Fprintf(out, "%s: %s\n", webhook.HeaderSvixSignature, sig)
			case "lemon-squeezy":
				if cfg.LemonSqueezyWebhookSecret == "" {
					return errors.New("LEMON_SQUEEZY_WEBHOOK_SIGNATURE is not set")
				}
				fmt.Fprintf(out, "%s: %s\n", webhook.HeaderLemonSignature, webhook.SignLemonSqueezy(cfg.LemonSqueezyWebhookSecret, body))
			default:
				return fmt.Errorf("unknown provider %q: must be clerk or lemon-squeezy", provider)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "clerk", "clerk | lemon-squeezy")
	return cmd
}
