package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentwire/a2a-runtime/pkg/client"
)

var (
	cardURLFlag   string
	cardTokenFlag string
	extendedFlag  bool

	cardCmd = &cobra.Command{
		Use:   "card",
		Short: "Fetch and display an agent's card",
		Long:  longCard,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []client.ClientOption{}

			if cardTokenFlag != "" {
				opts = append(opts, client.WithBearerToken(cardTokenFlag))
			}

			agent := client.NewClient(cardURLFlag, opts...)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			card, err := agent.GetCard(ctx)

			if extendedFlag {
				card, err = agent.GetExtendedCard(ctx)
			}

			if err != nil {
				return err
			}

			fmt.Println(card.String())
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(cardCmd)

	cardCmd.Flags().StringVarP(&cardURLFlag, "url", "u", "http://localhost:3210", "Base URL of the agent")
	cardCmd.Flags().StringVar(&cardTokenFlag, "token", "", "Bearer token for the authenticated extended card")
	cardCmd.Flags().BoolVar(&extendedFlag, "extended", false, "Fetch the authenticated extended card")
}

var longCard = `
Fetch the discovery document of a running agent and render it.

Examples:
  # Show the public card
  a2a-runtime card --url http://localhost:3210

  # Show the authenticated extended card
  a2a-runtime card --url http://localhost:3210 --extended --token <jwt>
`
