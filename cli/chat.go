package cli

import (
	"context"
	"fmt"
	"hompy/chat"
	"hompy/storage"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	chatFollow   bool
	chatInterval int

	sayName     string
	sayAge      string
	sayLocation string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Read the guestbook",
	RunE:  runChat,
}

var sayCmd = &cobra.Command{
	Use:   "say [message]",
	Short: "Leave a guestbook message",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSay,
}

func init() {
	chatCmd.Flags().BoolVar(&chatFollow, "follow", false, "Keep polling for new messages")
	chatCmd.Flags().IntVar(&chatInterval, "interval", 30, "Poll interval in seconds")
	rootCmd.AddCommand(chatCmd)

	sayCmd.Flags().StringVar(&sayName, "name", "", "Username")
	sayCmd.Flags().StringVar(&sayAge, "age", "", "Age")
	sayCmd.Flags().StringVar(&sayLocation, "location", "", "Location")
	rootCmd.AddCommand(sayCmd)
}

func printEntries(entries []chat.Entry) {
	for _, entry := range entries {
		if entry.Kind == chat.EntryDivider {
			fmt.Printf("---- %s ----\n", entry.Date)
			continue
		}
		fmt.Printf(
			"%s %s (%s/%s): %s\n",
			entry.Time, entry.Username, entry.Age, entry.Location, entry.Message,
		)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	client, err := newBackendClient()
	if err != nil {
		return err
	}

	controller := chat.NewController(client, storage.NewMemGateway())
	ctx := context.Background()

	entries, err := controller.Refresh(ctx, true)
	if err != nil {
		return err
	}
	printEntries(entries)

	if !chatFollow {
		return nil
	}
	for {
		time.Sleep(time.Duration(chatInterval) * time.Second)
		entries, err := controller.Refresh(ctx, false)
		if err != nil {
			continue
		}
		printEntries(entries)
	}
}

func runSay(cmd *cobra.Command, args []string) error {
	client, err := newBackendClient()
	if err != nil {
		return err
	}

	store := storage.NewMemGateway()
	store.SaveProfile(storage.UserProfile{
		Username: sayName,
		Age:      sayAge,
		Location: sayLocation,
	})

	controller := chat.NewController(client, store)
	if err := controller.Send(context.Background(), strings.Join(args, " "), ""); err != nil {
		return err
	}
	fmt.Println("message sent")
	return nil
}
