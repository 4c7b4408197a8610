package main

import (
	"log"

	"pixpago/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("pixpago failed: %v", err)
	}
}
