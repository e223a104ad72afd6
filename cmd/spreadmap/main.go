package main

import (
	"github.com/joho/godotenv"

	"github.com/MeKo-Tech/spreadmap/cmd/spreadmap/cmd"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()
	cmd.Execute()
}
