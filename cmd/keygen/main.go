package main

import (
	"fmt"
	"log"

	"github.com/mltrack/backend/pkg/utils/keygen"
)

func main() {
	secret, err := keygen.Secret(48)
	if err != nil {
		log.Fatalf("Failed to generate jwt secret: %v", err)
	}

	fmt.Printf("Generating console credentials...\n")
	fmt.Printf("auth.admin_api_key: %s\n", keygen.Token(40))
	fmt.Printf("auth.jwt_secret:    %s\n", secret)
	fmt.Printf("Set these in config/config.yaml\n")
}
