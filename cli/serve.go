package cli

import (
	"fmt"
	"hompy/chat"
	"hompy/feed"
	"hompy/server"
	"hompy/storage"
	"hompy/tasks"
	"hompy/utils"
	"math"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the homepage companion daemon",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	client, err := newBackendClient()
	if err != nil {
		return err
	}

	redisHost := os.Getenv("REDIS_HOST")
	redisPort := os.Getenv("REDIS_PORT")
	if redisHost == "" {
		redisHost = "localhost"
	}
	if redisPort == "" {
		redisPort = "6379"
	}
	redisOptions := redis.Options{
		Addr:     fmt.Sprintf("%s:%s", redisHost, redisPort),
		Password: "", // no password set
		DB:       0,  // use default DB
	}
	store := storage.NewRedisGateway(&redisOptions)

	cacheMinutes := utils.IntFromString(os.Getenv("POSTS_CACHE_MINUTES"), 5)
	pageSize := utils.IntFromString(os.Getenv("POSTS_PER_PAGE"), 10)
	pollSeconds := utils.IntFromString(os.Getenv("CHAT_POLL_SECONDS"), 30)

	feedController := feed.NewController(
		client,
		store,
		os.Getenv("HOMPY_PUBLIC_URL"),
		time.Duration(cacheMinutes)*time.Minute,
		pageSize,
	)
	chatController := chat.NewController(client, store)

	// Guestbook poller
	go utils.Recoverer(math.MaxInt, 1, func() {
		tasks.PollChat(chatController, time.Duration(pollSeconds)*time.Second)
	})

	s := server.NewServer(feedController, chatController, store)
	s.Run()
	return nil
}
