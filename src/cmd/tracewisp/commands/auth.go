// FILE: tracewisp/src/cmd/tracewisp/commands/auth.go
package commands

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"tracewisp/src/internal/auth"
	"tracewisp/src/internal/core"

	"golang.org/x/term"
)

// AuthCommand generates credentials for the status endpoint
type AuthCommand struct {
	output       io.Writer
	errOut       io.Writer
	readPassword func(prompt string) (string, error)
	params       *auth.Params // nil uses auth.DefaultParams
}

func (ac *AuthCommand) Execute(args []string) error {
	cmd := flag.NewFlagSet("auth", flag.ContinueOnError)
	cmd.SetOutput(ac.errOut)

	var (
		username     = cmd.String("u", "", "Username")
		usernameLong = cmd.String("user", "", "Username")
		password     = cmd.String("p", "", "Password (will prompt if not provided)")
		passwordLong = cmd.String("password", "", "Password (will prompt if not provided)")

		genToken     = cmd.Bool("k", false, "Generate random bearer token")
		genTokenLong = cmd.Bool("token", false, "Generate random bearer token")
		tokenLen     = cmd.Int("l", core.DefaultTokenLength, "Token length in bytes")
		tokenLenLong = cmd.Int("length", core.DefaultTokenLength, "Token length in bytes")

		genJWT   = cmd.Bool("jwt", false, "Mint a signed HS256 JWT")
		jwtKey   = cmd.String("key", "", "JWT signing key (required with --jwt)")
		subject  = cmd.String("sub", "", "JWT subject")
		issuer   = cmd.String("iss", "", "JWT issuer")
		audience = cmd.String("aud", "", "JWT audience")
		ttl      = cmd.Duration("ttl", 24*time.Hour, "JWT lifetime")
	)

	cmd.Usage = func() {
		fmt.Fprint(ac.errOut, ac.Help())
	}

	if err := cmd.Parse(args); err != nil {
		return err
	}
	if cmd.NArg() > 0 {
		return fmt.Errorf("unexpected argument(s): %s", strings.Join(cmd.Args(), " "))
	}

	finalUsername := coalesceString(*username, *usernameLong)
	finalPassword := coalesceString(*password, *passwordLong)
	finalTokenLen := coalesceInt(*tokenLen, *tokenLenLong, core.DefaultTokenLength)

	switch {
	case *genJWT:
		return ac.mintJWT(*jwtKey, auth.TokenClaims{
			Subject:  coalesceString(*subject, finalUsername),
			Issuer:   *issuer,
			Audience: *audience,
			TTL:      *ttl,
		})
	case coalesceBool(*genToken, *genTokenLong):
		return ac.generateToken(finalTokenLen)
	case finalUsername == "":
		cmd.Usage()
		return errors.New("username required for basic auth generation")
	default:
		return ac.generateBasicAuth(finalUsername, finalPassword)
	}
}

func (ac *AuthCommand) Description() string {
	return "Generate status endpoint credentials (password hashes, tokens, JWTs)"
}

func (ac *AuthCommand) Help() string {
	return `Auth Command - Generate credentials for the TraceWisp status endpoint

Usage:
  tracewisp auth [options]

Options:
  -u, --user <name>        Username for a basic auth password hash
  -p, --password <pass>    Password (will prompt if not provided)
  -k, --token              Generate a random bearer token
  -l, --length <bytes>     Token length in bytes (default: 32)
  --jwt                    Mint a signed HS256 JWT
  --key <secret>           JWT signing key, must match [status.auth.bearer_auth.jwt]
  --sub, --iss, --aud      JWT subject, issuer and audience claims
  --ttl <duration>         JWT lifetime (default: 24h)

Examples:
  # Argon2id hash for basic auth
  tracewisp auth -u admin

  # 64-byte bearer token
  tracewisp auth -k -l 64

  # JWT for an operator, valid for one hour
  tracewisp auth --jwt --key "$SIGNING_KEY" --sub ops --ttl 1h

Output:
  Configuration snippets ready to paste into tracewisp.toml.
`
}

func (ac *AuthCommand) generateBasicAuth(username, password string) error {
	if password == "" {
		var err error
		if password, err = ac.promptForPassword(); err != nil {
			return err
		}
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	params := auth.DefaultParams()
	if ac.params != nil {
		params = *ac.params
	}
	hash, err := auth.HashPassword(password, params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Fprintln(ac.output, "\n# Basic Auth Configuration (status endpoint)")
	fmt.Fprintln(ac.output, "# Add to tracewisp.toml:")
	fmt.Fprintln(ac.output, "")
	fmt.Fprintln(ac.output, "[status.auth]")
	fmt.Fprintln(ac.output, `type = "basic"`)
	fmt.Fprintln(ac.output, "")
	fmt.Fprintln(ac.output, "[[status.auth.basic_auth.users]]")
	fmt.Fprintf(ac.output, "username = %q\n", username)
	fmt.Fprintf(ac.output, "password_hash = %q\n", hash)
	return nil
}

func (ac *AuthCommand) promptForPassword() (string, error) {
	pass1, err := ac.readPassword("Enter password: ")
	if err != nil {
		return "", err
	}
	pass2, err := ac.readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if pass1 != pass2 {
		return "", errors.New("passwords don't match")
	}
	return pass1, nil
}

func (ac *AuthCommand) generateToken(length int) error {
	if length < 16 {
		fmt.Fprintln(ac.errOut, "Warning: tokens < 16 bytes are cryptographically weak")
	}
	token, err := auth.GenerateToken(length)
	if err != nil {
		return err
	}

	fmt.Fprintln(ac.output, "\n# Bearer Token Configuration (status endpoint)")
	fmt.Fprintln(ac.output, "# Add to tracewisp.toml:")
	fmt.Fprintln(ac.output, "")
	fmt.Fprintln(ac.output, "[status.auth]")
	fmt.Fprintln(ac.output, `type = "bearer"`)
	fmt.Fprintln(ac.output, "")
	fmt.Fprintln(ac.output, "[status.auth.bearer_auth]")
	fmt.Fprintf(ac.output, "tokens = [%q]\n", token)
	return nil
}

func (ac *AuthCommand) mintJWT(key string, claims auth.TokenClaims) error {
	if key == "" {
		return errors.New("--key is required with --jwt")
	}
	token, err := auth.MintToken([]byte(key), claims)
	if err != nil {
		return err
	}

	fmt.Fprintln(ac.output, "\n# Signed JWT, send as: Authorization: Bearer <token>")
	fmt.Fprintf(ac.output, "# Expires in %s\n", claims.TTL)
	fmt.Fprintln(ac.output, token)
	return nil
}

// readTerminalPassword reads without echo from the controlling terminal
func readTerminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available, pass the password with -p")
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
