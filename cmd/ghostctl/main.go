package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mmmmuhib/beneat-sol-sub001/params"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/commitment"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/delegate"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ghost"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/instruction"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/ledger"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/program"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/trigger"
)

// ghostctl prepares a ghost order: it generates the order id and nonce,
// derives the record address, prints the create instruction, and hands the
// plaintext params to a keeper so the order can execute once triggered.
func main() {
	var (
		ownerHex     = flag.String("owner", "", "owner address (32-byte hex, required)")
		market       = flag.Uint("market", 0, "market index")
		side         = flag.String("side", "long", "order side: long | short")
		amount       = flag.Uint64("amount", 0, "base asset amount (required)")
		reduceOnly   = flag.Bool("reduce-only", false, "reduce-only order")
		triggerPrice = flag.Uint64("trigger-price", 0, "trigger price (required)")
		condition    = flag.String("condition", "below", "trigger condition: above | below")
		ttl          = flag.Duration("ttl", 24*time.Hour, "time until the order expires")
		feedHex      = flag.String("feed", "", "price feed id (32-byte hex)")
		driftHex     = flag.String("drift-user", "", "downstream derivatives account (32-byte hex)")
		keeperURL    = flag.String("keeper", "http://localhost:8080", "keeper base URL ('' to skip registration)")
	)
	flag.Parse()

	cfg := params.LoadFromEnv("")
	programID, err := ledger.AddressFromHex(cfg.Program.ID)
	if err != nil {
		fatalf("bad program id: %v", err)
	}
	delegationProgram, err := ledger.AddressFromHex(cfg.Program.DelegationProgram)
	if err != nil {
		fatalf("bad delegation program id: %v", err)
	}
	delegationAuthority, err := ledger.AddressFromHex(cfg.Program.DelegationAuthority)
	if err != nil {
		fatalf("bad delegation authority: %v", err)
	}

	owner, err := ledger.AddressFromHex(*ownerHex)
	if err != nil {
		fatalf("bad -owner: %v", err)
	}
	if *amount == 0 || *triggerPrice == 0 {
		fatalf("-amount and -trigger-price are required")
	}

	orderSide := commitment.SideLong
	if *side == "short" {
		orderSide = commitment.SideShort
	} else if *side != "long" {
		fatalf("bad -side %q", *side)
	}
	cond := trigger.Below
	if *condition == "above" {
		cond = trigger.Above
	} else if *condition != "below" {
		fatalf("bad -condition %q", *condition)
	}

	var feedID [32]byte
	if *feedHex != "" {
		feed, err := ledger.AddressFromHex(*feedHex)
		if err != nil {
			fatalf("bad -feed: %v", err)
		}
		feedID = feed
	}
	var driftUser ledger.Address
	if *driftHex != "" {
		if driftUser, err = ledger.AddressFromHex(*driftHex); err != nil {
			fatalf("bad -drift-user: %v", err)
		}
	}

	// Order id: snowflake keeps ids unique across invocations without
	// shared state.
	node, err := snowflake.NewNode(1)
	if err != nil {
		fatalf("snowflake: %v", err)
	}
	orderID := uint64(node.Generate().Int64())

	orderParams := commitment.OrderParams{
		MarketIndex:     uint16(*market),
		Side:            orderSide,
		BaseAssetAmount: *amount,
		ReduceOnly:      *reduceOnly,
	}
	nonce, err := commitment.GenerateNonce()
	if err != nil {
		fatalf("nonce: %v", err)
	}
	paramsCommitment := commitment.Commit(orderParams, nonce)

	recordAddr, bump := ghost.DeriveOrderAddress(programID, owner, orderID)

	fmt.Println("Ghost order prepared:")
	fmt.Printf("  Order ID:     %d\n", orderID)
	fmt.Printf("  Record:       %s (bump %d)\n", recordAddr.Hex(), bump)
	fmt.Printf("  Owner:        %s\n", owner.Hex())
	fmt.Printf("  Market:       %d\n", orderParams.MarketIndex)
	fmt.Printf("  Trigger:      %s %d\n", *condition, *triggerPrice)
	fmt.Printf("  Commitment:   %s\n", hexutil.Encode(paramsCommitment[:]))
	fmt.Printf("  Nonce:        %d (KEEP SECRET until execution!)\n\n", nonce)

	ctl := &delegate.Controller{
		GhostProgram:        programID,
		DelegationProgram:   delegationProgram,
		DelegationAuthority: delegationAuthority,
	}
	setup := orderSetupInstructions(programID, ctl, recordAddr, program.CreateArgs{
		Owner:            owner,
		OrderID:          orderID,
		MarketIndex:      orderParams.MarketIndex,
		TriggerPrice:     *triggerPrice,
		TriggerCondition: cond,
		Expiry:           time.Now().Add(*ttl).Unix(),
		FeedID:           feedID,
		DriftUser:        driftUser,
		ParamsCommitment: paramsCommitment,
	}, cfg.Program.CommitFrequency)

	setupJSON, err := json.MarshalIndent(setup, "", "  ")
	if err != nil {
		fatalf("marshal instructions: %v", err)
	}
	fmt.Println("Setup instructions (create, then delegate):")
	fmt.Println(string(setupJSON))
	fmt.Println()

	if *keeperURL == "" {
		fmt.Println("Skipping keeper registration (-keeper '').")
		return
	}

	// Hand the keeper its plaintext cache entry. Without this the order
	// can trigger but never execute.
	body, _ := json.Marshal(map[string]interface{}{
		"market_index":      orderParams.MarketIndex,
		"side":              *side,
		"base_asset_amount": orderParams.BaseAssetAmount,
		"reduce_only":       orderParams.ReduceOnly,
		"nonce":             nonce,
	})
	url := fmt.Sprintf("%s/api/v1/orders/%s/params", *keeperURL, recordAddr.Hex())
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		fatalf("register params: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Keeper rejected params (%d): %s\n", resp.StatusCode, respBody)
		fmt.Println("Submit the create instruction first, then re-register.")
		os.Exit(1)
	}
	fmt.Printf("Params registered with keeper: %s\n", respBody)
}

// orderSetupInstructions pairs the create instruction with the delegation
// handoff, so one submission leaves the record live on the execution layer
// with the keeper cranking it.
func orderSetupInstructions(programID ledger.Address, ctl *delegate.Controller, recordAddr ledger.Address, args program.CreateArgs, commitFrequency time.Duration) []instruction.Instruction {
	return []instruction.Instruction{
		program.BuildCreate(programID, args),
		ctl.BuildDelegate(args.Owner, recordAddr, commitFrequency),
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "ghostctl: "+format+"\n", args...)
	os.Exit(1)
}
