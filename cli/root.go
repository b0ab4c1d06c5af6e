package cli

import (
	"fmt"
	"hompy/backend"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hompy",
	Short: "Personal homepage companion: post feed, guestbook and viewer links",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newBackendClient() (*backend.Client, error) {
	baseURL := os.Getenv("HOMPY_BACKEND_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("HOMPY_BACKEND_URL is not set")
	}
	return backend.NewClient(baseURL), nil
}
