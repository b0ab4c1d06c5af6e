package cli

import (
	"context"
	"fmt"
	"hompy/feed"
	"hompy/storage"
	"hompy/utils"
	"time"

	"github.com/spf13/cobra"
)

var (
	postsTag    string
	postsSearch string
	postsPage   int
)

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List homepage posts",
	RunE:  runPosts,
}

func init() {
	postsCmd.Flags().StringVar(&postsTag, "tag", "all", "Tag filter")
	postsCmd.Flags().StringVar(&postsSearch, "search", "", "Search term")
	postsCmd.Flags().IntVar(&postsPage, "page", 0, "Page number")
	rootCmd.AddCommand(postsCmd)
}

func runPosts(cmd *cobra.Command, args []string) error {
	client, err := newBackendClient()
	if err != nil {
		return err
	}

	controller := feed.NewController(
		client,
		storage.NewMemGateway(),
		"",
		5*time.Minute,
		10,
	)
	controller.SetFilter(postsTag, postsSearch)

	posts, err := controller.Page(context.Background(), postsPage)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Println("no posts found")
		return nil
	}

	for _, post := range posts {
		marker := " "
		if post.Pin {
			marker = "*"
		}
		fmt.Printf(
			"%s #%-4d %-10s %-40s like:%-4d share:%-4d %s\n",
			marker, post.RowIndex, post.Tag, post.Title, post.Like, post.Share,
			utils.EmbedURL(post.Type, post.Id),
		)
	}
	if controller.EndOfFeed() {
		fmt.Println("-- end of feed --")
	}
	return nil
}
