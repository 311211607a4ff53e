package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	appLog "minibridge/internal/log"
)

var version = "0.1.0-dev"

func init() {
	if err := godotenv.Load(); err != nil {
		appLog.Debug("no .env file loaded", "error", err.Error())
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
