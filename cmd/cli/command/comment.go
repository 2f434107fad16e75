package command

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"taskhub/cmd/cli/command/client"
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Comment commands",
	Long:  `Comment on tasks. Every assignee of the task except you gets a notification.`,
}

var createCommentCmd = &cobra.Command{
	Use:   "create [task-id] [content]",
	Short: "Create a comment on a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID := args[0]
		content := strings.TrimSpace(strings.Join(args[1:], " "))
		if content == "" {
			return fmt.Errorf("comment content is empty")
		}

		creds, err := currentCredentials()
		if err != nil {
			return err
		}

		httpClient := client.NewHTTPClient(apiURL, creds.AccessToken)
		result, err := httpClient.CreateComment(cmd.Context(), taskID, content)
		if err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}

		fmt.Println("✓ Comment created successfully!")
		fmt.Printf("Comment ID: %s\n", result.Comment.ID)
		fmt.Printf("Task ID: %s\n", result.Comment.TaskID)
		fmt.Printf("Content: %s\n", result.Comment.Content)
		fmt.Printf("Created at: %s\n", result.Comment.CreatedAt.Local().Format("2006-01-02 15:04:05"))

		summary := result.Notifications
		fmt.Printf("Notified: %d of %d recipient(s), %d delivered live\n",
			summary.Created, summary.Recipients, summary.Delivered)
		if len(summary.Failed) > 0 {
			color.Yellow("! notifications could not be stored for: %s", strings.Join(summary.Failed, ", "))
		}
		return nil
	},
}

func init() {
	commentCmd.AddCommand(createCommentCmd)
}
