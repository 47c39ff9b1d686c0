// Command devtoken mints an access token signed with JWT_SECRET so the
// purchase endpoint and the websocket gateway can be exercised without
// the registration service.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/iliyamo/eventsphere/internal/config"
	"github.com/iliyamo/eventsphere/internal/utils"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load()

	var (
		userID, email, role, secret string
		ttl                         time.Duration
	)
	flagSet := pflag.NewFlagSet("devtoken", pflag.ContinueOnError)
	flagSet.StringVar(&userID, "sub", "", "user id placed in the subject claim (required)")
	flagSet.StringVar(&email, "email", "", "email claim")
	flagSet.StringVar(&role, "role", "USER", "role claim (USER or ADMIN)")
	flagSet.StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC secret (default: $JWT_SECRET)")
	flagSet.DurationVar(&ttl, "ttl", config.AccessTokenTTL(), "token lifetime (default: $ACCESS_TOKEN_TTL_MIN minutes)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if userID == "" {
		return errors.New("--sub is required")
	}
	if secret == "" {
		return errors.New("no secret: set JWT_SECRET or pass --secret")
	}

	tok, err := utils.NewAccessToken(secret, userID, email, role, ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
	return nil
}
