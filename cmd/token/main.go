// Command token prints a signed access token for the seat API.  User
// accounts live with the upstream identity provider; this is for operators
// and local testing.
//
//	go run ./cmd/token -uid u123 -role ADMIN -ttl 1h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/seat-inventory/internal/utils"
)

func main() {
	uid := flag.String("uid", "", "user id to put in the sub claim")
	role := flag.String("role", "USER", "role claim, USER or ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	tok, err := utils.NewAccessToken(secret, *uid, *role, *ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
