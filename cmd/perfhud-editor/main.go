package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"perfhud/internal/connection"
)

const (
	exitCodeFailure = 1
)

// run connects to a running HUD and performs the requested editor actions.
// Params: none.
// Returns: process exit code.
func run() int {
	var (
		addr        string
		messageType string
		payload     string
		latest      bool
		health      bool
		timeout     time.Duration
	)

	flag.StringVar(&addr, "addr", "127.0.0.1:34999", "player connection address")
	flag.StringVar(&messageType, "type", connection.PerformanceStatsMessage.String(), "message type UUID")
	flag.StringVar(&payload, "send", "", "payload to send (empty skips sending)")
	flag.BoolVar(&latest, "latest", true, "print the latest frame report")
	flag.BoolVar(&health, "health", false, "print the player health status")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "dial and request timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := editor(ctx, addr, messageType, payload, latest, health, timeout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCodeFailure
	}
	return 0
}

// editor performs one session against the player.
// Params: ctx lifecycle; addr player address; messageType/payload optional message; latest/health actions; timeout per call.
// Returns: first dial or rpc error.
func editor(ctx context.Context, addr, messageType, payload string, latest, health bool, timeout time.Duration) error {
	id, err := uuid.Parse(messageType)
	if err != nil {
		return fmt.Errorf("parse message type: %w", err)
	}

	client, err := connection.Dial(ctx, addr, timeout)
	if err != nil {
		return err
	}
	defer client.Close()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if health {
		status, err := client.Health(callCtx)
		if err != nil {
			return err
		}
		fmt.Printf("health: %s\n", status)
	}

	if payload != "" {
		if err := client.Send(callCtx, id, []byte(payload)); err != nil {
			return err
		}
		fmt.Printf("sent %d bytes as %s\n", len(payload), id)
	}

	if !latest {
		return nil
	}
	report, err := client.Latest(callCtx)
	if err != nil {
		return err
	}
	text := report.GetFields()["text"].GetStringValue()
	if text == "" {
		return errors.New("latest report has no text")
	}
	fmt.Print(text)
	return nil
}

func main() {
	os.Exit(run())
}
