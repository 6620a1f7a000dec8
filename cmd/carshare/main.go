package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/geocoder89/carshare/internal/client/api"
	"github.com/geocoder89/carshare/internal/client/session"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, errLoginRequired) {
			fmt.Fprintln(os.Stderr, "please log in: run `carshare login`")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "error: %s\n", api.UserMessage(err))
		os.Exit(1)
	}
}

// newApp is the composition root: one session and one API client shared by
// every command.
func newApp() (*app, error) {
	path := os.Getenv("CARSHARE_SESSION_FILE")
	if path == "" {
		p, err := session.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	sess, err := session.New(session.NewFileStore(path))
	if err != nil {
		return nil, err
	}

	client, err := api.New(os.Getenv("CARSHARE_API_URL"))
	if err != nil {
		return nil, err
	}

	return &app{
		sess:   sess,
		api:    client,
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		secret: readSecret,
	}, nil
}
