// bundlerd wires the mempool core (uop, reputation, mempool, router,
// service) into a standalone process, following evm-node's urfave/cli shape
// for flag parsing and startup logging. No block reactor is constructed.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/luxfi/bundler/mempool"
	"github.com/luxfi/bundler/reputation"
	"github.com/luxfi/bundler/router"
	"github.com/luxfi/bundler/service"
)

const clientIdentifier = "bundlerd"

var (
	maxPoolSizeFlag = &cli.IntFlag{
		Name:  "max-pool-size-per-entry-point",
		Value: 10000,
		Usage: "maximum resident operations per entry point pool",
	}
	replacementBumpFlag = &cli.IntFlag{
		Name:  "replacement-bump-percent",
		Value: mempoolDefaultBumpPercent,
		Usage: "minimum percent both fee fields must increase by to replace a resident operation",
	}
	throttlingSlackFlag = &cli.Int64Flag{
		Name:  "throttling-slack",
		Value: 10,
		Usage: "ops_seen - ops_included slack before an entity is throttled",
	}
	banningSlackFlag = &cli.Int64Flag{
		Name:  "banning-slack",
		Value: 100,
		Usage: "ops_seen - ops_included slack before an entity is banned",
	}
	decayHoursFlag = &cli.Float64Flag{
		Name:  "decay-hours",
		Value: reputation.DefaultDecayHours,
		Usage: "hours of simulated operation time for a full reputation decay",
	}
	chainIDFlag = &cli.Uint64Flag{
		Name:  "chain-id",
		Value: 1337,
		Usage: "chain id salted into every operation hash",
	}
	entryPointsFlag = &cli.StringFlag{
		Name:     "supported-entry-points",
		Usage:    "comma-separated list of 20-byte entry point addresses this bundler serves",
		Required: true,
	}
)

const mempoolDefaultBumpPercent = 10

var app = &cli.App{
	Name:  clientIdentifier,
	Usage: "ERC-4337 account-abstraction mempool service",
	Flags: []cli.Flag{
		maxPoolSizeFlag,
		replacementBumpFlag,
		throttlingSlackFlag,
		banningSlackFlag,
		decayHoursFlag,
		chainIDFlag,
		entryPointsFlag,
	},
}

func init() {
	app.Action = run
	app.Before = func(ctx *cli.Context) error {
		log.SetDefault(log.NewLogger(log.NewTerminalHandler(os.Stderr, true)))
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	entryPoints, err := parseEntryPoints(ctx.String(entryPointsFlag.Name))
	if err != nil {
		return err
	}

	cfg := mempool.Config{
		MaxSize:                ctx.Int(maxPoolSizeFlag.Name),
		ReplacementBumpPercent: ctx.Int(replacementBumpFlag.Name),
		Thresholds: reputation.Thresholds{
			ThrottlingSlack: ctx.Int64(throttlingSlackFlag.Name),
			BanningSlack:    ctx.Int64(banningSlackFlag.Name),
		},
	}
	chainID := ctx.Uint64(chainIDFlag.Name)

	pools := make([]*mempool.Pool, 0, len(entryPoints))
	for _, ep := range entryPoints {
		pools = append(pools, mempool.NewPool(ep, chainID, cfg))
	}

	tracker := reputation.New(reputation.SystemClock, ctx.Float64(decayHoursFlag.Name))
	r := router.New(pools)
	// No request transport or block-event listener is attached here; this
	// binary only owns the pool core's lifecycle, and svc is exercised once
	// to confirm the wiring before the process settles into the decay loop.
	svc := service.New(r, tracker, chainID)
	_, supportedEntryPoints := svc.GetSupportedEntryPoints()

	log.Info("bundlerd mempool core initialized",
		"entryPoints", len(supportedEntryPoints), "chainID", chainID, "maxPoolSize", cfg.MaxSize)

	decayInterval := time.Duration(ctx.Float64(decayHoursFlag.Name) * float64(time.Hour))
	ticker := time.NewTicker(decayInterval)
	defer ticker.Stop()
	for range ticker.C {
		tracker.Tick()
	}
	return nil
}

func parseEntryPoints(raw string) ([]common.Address, error) {
	parts := strings.Split(raw, ",")
	out := make([]common.Address, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !common.IsHexAddress(p) {
			return nil, fmt.Errorf("invalid entry point address %q", p)
		}
		out = append(out, common.HexToAddress(p))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("supported-entry-points must name at least one address")
	}
	return out, nil
}
