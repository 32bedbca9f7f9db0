// Command postfeed browses a paginated post feed from the terminal or serves
// it over HTTP to a presentation client.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	if err := newRootCommand(os.Getenv).Execute(); err != nil {
		os.Exit(1)
	}
}
