package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"eventcal/internal/auth"
	"eventcal/internal/config"
)

// hashPassword handles the hash-password subcommand. With -config the
// credentials are written into the config file; otherwise the hash is
// printed for pasting.
func hashPassword(args []string) error {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	configPath := fs.String("config", "", "Write the credentials into this config file")
	username := fs.String("user", "admin", "Basic Auth username")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: eventcal hash-password [OPTIONS]\n\n")
		fmt.Fprintf(os.Stderr, "Prompts for a password and prints its Argon2id hash.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := promptPassword("Enter password:   ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	if *configPath == "" {
		fmt.Printf("basic_auth:\n  username: %s\n  password_hash: %s\n", *username, hash)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.BasicAuth = &config.BasicAuthConfig{Username: *username, PasswordHash: hash}
	if err := cfg.Save(*configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("Basic Auth enabled for %q in %s\n", *username, *configPath)
	return nil
}

var stdin = bufio.NewReader(os.Stdin)

// promptPassword reads without echo from a terminal, or one line from a
// pipe.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := stdin.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Print(prompt)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
