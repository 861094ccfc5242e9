package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/worldid/worldid-go/internal/config"
	"github.com/worldid/worldid-go/pkg/bridge"
	"github.com/worldid/worldid-go/pkg/signal"
	"github.com/worldid/worldid-go/pkg/verify"
)

// buildRequest translates the flow configuration into a bridge request.
func buildRequest(cfg config.FlowConfig) (bridge.Request, error) {
	appID, err := bridge.ParseAppID(cfg.App.ID)
	if err != nil {
		return bridge.Request{}, err
	}

	req := bridge.Request{
		AppID:             appID,
		Action:            cfg.App.Action,
		ActionDescription: cfg.App.ActionDescription,
		VerificationLevel: bridge.VerificationLevel(cfg.App.VerificationLevel),
	}

	if cfg.App.Signal != "" {
		req.Signal = signal.String(cfg.App.Signal)
	}

	if cfg.Bridge.URL != "" {
		bridgeURL, err := bridge.ParseBridgeURL(cfg.Bridge.URL)
		if err != nil {
			return bridge.Request{}, err
		}
		req.Bridge = bridgeURL
	}

	return req, nil
}

// run drives one verification attempt end to end.
func run(ctx context.Context, cfg config.FlowConfig) error {
	req, err := buildRequest(cfg)
	if err != nil {
		return err
	}

	session, err := bridge.NewSession(ctx, req)
	if err != nil {
		return err
	}
	slog.Info("session established", "request_id", session.RequestID())

	// The connect URL is the flow's output; it carries the session key to
	// the user's device and goes nowhere else.
	fmt.Println("To continue, open this URL with your World App:")
	fmt.Println(session.ConnectURL())

	interval := time.Duration(cfg.Bridge.PollIntervalMS) * time.Millisecond
	status, err := waitForTerminal(ctx, session, interval)
	if err != nil {
		return err
	}

	if status.State == bridge.StateFailed {
		return status.Error
	}

	proof := status.Proof
	fmt.Println("\nReceived proof!")
	fmt.Printf("Verification Level: %s\n", proof.VerificationLevel)
	fmt.Printf("Nullifier Hash:     %s\n", proof.NullifierHash)
	fmt.Printf("Merkle Root:        %s\n", proof.MerkleRoot)
	fmt.Printf("Proof:              %s\n", proof.Proof)

	if !cfg.Verify.Enabled {
		return nil
	}

	verifyReq := verify.Request{
		AppID:  req.AppID,
		Action: req.Action,
		Proof:  *proof,
		Signal: req.Signal,
	}
	if err := verify.NewClient(cfg.Verify.BaseURL).VerifyProof(ctx, verifyReq); err != nil {
		return err
	}
	slog.Info("proof verified with the Developer Portal")
	return nil
}

// waitForTerminal polls the session on a fixed cadence until it reaches a
// terminal status, logging state transitions along the way. Cancellation is
// the caller's: abandoning the loop after any poll is always safe.
func waitForTerminal(ctx context.Context, session *bridge.Session, interval time.Duration) (bridge.Status, error) {
	last := bridge.State(-1)

	for {
		select {
		case <-ctx.Done():
			return bridge.Status{}, ctx.Err()
		case <-time.After(interval):
		}

		status, err := session.PollForStatus(ctx)
		if err != nil {
			return bridge.Status{}, err
		}

		if status.State != last {
			slog.Info("bridge status changed", "state", status.State.String())
			last = status.State
		}

		if status.State.Terminal() {
			return status, nil
		}
	}
}
