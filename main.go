package main

import (
	"hompy/cli"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	// A .env next to the binary is optional
	_ = godotenv.Load()

	level, err := log.ParseLevel(os.Getenv("HOMPY_LOG_LEVEL"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	cli.Execute()
}
