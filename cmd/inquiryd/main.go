// Command inquiryd serves the inquiry endpoint.
package main

import (
	"context"
	"log"

	"github.com/dalemusser/inquiry/app"
	"github.com/dalemusser/inquiry/internal/app/bootstrap"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		log.Fatal(err)
	}
}
