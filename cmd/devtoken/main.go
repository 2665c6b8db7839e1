// Command devtoken prints a bearer token for a reader, signed with the
// configured AUTH_JWT_SECRET. Usage: devtoken -user alice
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/johnrirwin/newsradar/internal/auth"
	"github.com/johnrirwin/newsradar/internal/config"
	"github.com/johnrirwin/newsradar/internal/logging"
)

func main() {
	user := flag.String("user", "", "User ID to place in the token subject")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	verifier := auth.NewVerifier(cfg.Auth, logging.New(logging.LevelWarn))
	token, err := verifier.IssueToken(*user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
