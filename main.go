package main

import (
	"os"

	"trends-proxy/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
