package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
	"github.com/agentwire/a2a-runtime/pkg/client"
)

var (
	sendURLFlag      string
	sendTaskFlag     string
	sendContextFlag  string
	sendTokenFlag    string
	sendBlockingFlag bool
	sendStreamFlag   bool

	sendCmd = &cobra.Command{
		Use:   "send [text]",
		Short: "Send a message to an agent",
		Long:  longSend,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []client.ClientOption{}

			if sendTokenFlag != "" {
				opts = append(opts, client.WithBearerToken(sendTokenFlag))
			}

			agent := client.NewClient(sendURLFlag, opts...)

			msg := a2a.NewTextMessage(a2a.RoleUser, args[0])
			msg.TaskID = sendTaskFlag
			msg.ContextID = sendContextFlag

			params := a2a.MessageSendParams{
				Message:  *msg,
				Blocking: sendBlockingFlag,
			}

			if sendStreamFlag {
				return streamAndPrint(cmd, agent, params)
			}

			result, err := agent.SendMessage(cmd.Context(), params)

			if err != nil {
				return err
			}

			if result.Task != nil {
				fmt.Println(result.Task.String())
				return nil
			}

			fmt.Printf("task %s accepted in state %s\n", result.TaskID, result.Status.State)
			return nil
		},
	}
)

// streamAndPrint follows the task's event stream until it ends, printing one
// line per event.
func streamAndPrint(cmd *cobra.Command, agent *client.Client, params a2a.MessageSendParams) error {
	events, err := agent.StreamMessage(cmd.Context(), params)

	if err != nil {
		return err
	}

	for event := range events {
		switch event.Type {
		case a2a.EventTypeStatusUpdate:
			payload, err := event.StatusPayload()
			if err != nil {
				continue
			}
			fmt.Printf("[%s] task %s -> %s\n", event.ID, payload.TaskID, payload.Status.State)

			if payload.Final {
				return nil
			}

		case a2a.EventTypeArtifactUpdate:
			payload, err := event.ArtifactPayload()
			if err != nil {
				continue
			}
			fmt.Printf("[%s] artifact %s on task %s\n", event.ID, payload.Artifact.Name, payload.TaskID)

		default:
			fmt.Printf("[%s] %s\n", event.ID, event.Type)
		}
	}

	return nil
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendURLFlag, "url", "u", "http://localhost:3210", "Base URL of the agent")
	sendCmd.Flags().StringVarP(&sendTaskFlag, "task", "t", "", "Existing task to continue")
	sendCmd.Flags().StringVar(&sendContextFlag, "context", "", "Context id to group related tasks")
	sendCmd.Flags().StringVar(&sendTokenFlag, "token", "", "Bearer token")
	sendCmd.Flags().BoolVarP(&sendBlockingFlag, "blocking", "b", true, "Wait for the task to finish")
	sendCmd.Flags().BoolVarP(&sendStreamFlag, "stream", "s", false, "Stream task events instead of waiting")
}

var longSend = `
Send a text message to a running agent.

Examples:
  # Send and wait for the result
  a2a-runtime send "summarize this repository"

  # Stream status and artifact events as they happen
  a2a-runtime send --stream "summarize this repository"

  # Continue an existing task
  a2a-runtime send --task 9f1c... "add more detail"
`
