package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mltrack/backend/pkg/utils/passhash"
)

func main() {
	var password string
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		fmt.Print("Password: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Fatalf("Failed to read password: %v", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	hash, err := passhash.Hash(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	fmt.Printf("Generating bcrypt hash...\n")
	fmt.Println(hash)
	fmt.Printf("Set this as auth.admin_password_hash in config/config.yaml\n")
}
