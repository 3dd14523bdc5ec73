package main

import (
	"log"

	"github.com/flowplane/flowplane/internal/gateway"
	"github.com/flowplane/flowplane/internal/infra/config"
)

func main() {
	log.Println("flowplane api starting...")
	cfg := config.Load()
	if err := gateway.Run(cfg); err != nil {
		log.Fatalf("api error: %v", err)
	}
}
