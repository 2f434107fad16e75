package command

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"taskhub/cmd/cli/authentication"
	"taskhub/cmd/cli/command/client"
	"taskhub/internal/reconcile"
)

// notifications.go = list, watch and act on the caller's notifications.

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif", "n"},
	Short:   "Notification commands",
	Long: `List and follow your task notifications. The list is kept in a local cache,
merged with the server's unread list and with live pushes, so each notification
shows up once no matter how it arrived.`,
}

var listNotificationsCmd = &cobra.Command{
	Use:   "list",
	Short: "Show your unread notifications, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		if all, _ := cmd.Flags().GetBool("all"); all {
			items, err := s.api.FetchAll(ctx)
			if err != nil {
				return err
			}
			printNotifications(items, false)
			return nil
		}

		if err := s.engine.Start(ctx); err != nil {
			color.Yellow("! server unreachable, showing cached notifications (%v)", err)
		}
		printNotifications(s.engine.Sorted(), s.engine.HasUnseen())
		return nil
	},
}

var watchNotificationsCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow new notifications as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		if err := s.engine.Start(ctx); err != nil {
			color.Yellow("! unread fetch failed, showing cached notifications (%v)", err)
		}
		printNotifications(s.engine.Sorted(), s.engine.HasUnseen())

		sub, err := client.NewSubscriber(apiURL, s.creds.AccessToken, cliLogger())
		if err != nil {
			return err
		}
		sub.OnConnect = func() {
			color.HiBlack("connected, waiting for notifications (Ctrl+C to stop)")
		}

		err = sub.Run(ctx, func(item reconcile.Item) {
			added, err := s.engine.HandlePush(ctx, item)
			if err != nil {
				color.Yellow("! could not update local cache: %v", err)
			}
			if added {
				printNotification(item, true)
			}
		})
		if err != nil {
			return fmt.Errorf("live channel: %w", err)
		}
		return nil
	},
}

var readNotificationCmd = &cobra.Command{
	Use:   "read [notification-id]",
	Short: "Mark a notification read and remove it from the list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		s.engine.Restore(ctx)
		if err := s.engine.Acknowledge(ctx, args[0]); err != nil {
			return fmt.Errorf("removed locally, but %w", err)
		}
		fmt.Printf("✓ Notification %s marked read\n", args[0])
		return nil
	},
}

var readAllNotificationsCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification read",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		updated, err := s.api.MarkAllRead(ctx)
		if err != nil {
			return err
		}
		if err := s.engine.Clear(ctx); err != nil {
			return err
		}
		fmt.Printf("✓ %d notification(s) marked read\n", updated)
		return nil
	},
}

var dismissNotificationCmd = &cobra.Command{
	Use:   "dismiss [notification-id]",
	Short: "Remove a notification from the local list only",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		s.engine.Restore(ctx)
		if err := s.engine.Dismiss(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Notification %s dismissed\n", args[0])
		return nil
	},
}

var seenNotificationsCmd = &cobra.Command{
	Use:   "seen",
	Short: "Clear the new-notifications marker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		s.engine.Restore(ctx)
		return s.engine.ClearUnseenFlag(ctx)
	},
}

var clearNotificationsCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the local notification cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		if err := s.engine.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("✓ Local notification cache cleared")
		return nil
	},
}

func init() {
	notificationsCmd.AddCommand(listNotificationsCmd)
	notificationsCmd.AddCommand(watchNotificationsCmd)
	notificationsCmd.AddCommand(readNotificationCmd)
	notificationsCmd.AddCommand(readAllNotificationsCmd)
	notificationsCmd.AddCommand(dismissNotificationCmd)
	notificationsCmd.AddCommand(seenNotificationsCmd)
	notificationsCmd.AddCommand(clearNotificationsCmd)

	listNotificationsCmd.Flags().Bool("all", false, "include read notifications (server only, bypasses the cache)")
}

// session bundles what every notification command needs.
type session struct {
	creds  *authentication.StoredCredentials
	api    *client.HTTPClient
	cache  *reconcile.SQLiteCache
	engine *reconcile.Engine
}

func openSession() (*session, error) {
	creds, err := currentCredentials()
	if err != nil {
		return nil, err
	}

	path := settings.GetString("cache_path")
	if path == "" {
		if path, err = reconcile.DefaultCachePath(); err != nil {
			return nil, err
		}
	}
	cache, err := reconcile.OpenSQLiteCache(path)
	if err != nil {
		return nil, err
	}

	api := client.NewHTTPClient(apiURL, creds.AccessToken)
	return &session{
		creds:  creds,
		api:    api,
		cache:  cache,
		engine: reconcile.NewEngine(creds.UserID, cache, api, cliLogger()),
	}, nil
}

func (s *session) close() {
	s.cache.Close()
}

func printNotifications(items []reconcile.Item, unseen bool) {
	if len(items) == 0 {
		fmt.Println("No unread notifications.")
		return
	}
	if unseen {
		color.New(color.FgYellow, color.Bold).Println("● new notifications")
	}
	for _, item := range items {
		printNotification(item, false)
	}
}

func printNotification(item reconcile.Item, live bool) {
	where := item.TaskTitle
	if where == "" {
		where = item.TaskID
	}
	if item.ProjectName != "" {
		where = item.ProjectName + " / " + where
	}
	who := item.UserName
	if who == "" {
		who = "someone"
	}

	marker := " "
	if live {
		marker = color.GreenString("+")
	}
	fmt.Printf("%s %s %s commented on %s\n",
		marker,
		color.HiBlackString(item.CreatedAt.Local().Format(time.DateTime)),
		color.CyanString(who),
		color.New(color.Bold).Sprint(where),
	)
	fmt.Printf("    %s\n", item.Message)
	color.HiBlack("    id: %s", item.ID)
}
