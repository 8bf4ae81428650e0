package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Keeper struct {
	// PollInterval is the fixed delay between poll cycles. Cycles never
	// overlap: the next cycle is scheduled only after the previous one,
	// including all submissions, has finished.
	PollInterval time.Duration

	// PriceStaleness bounds how old a feed price may be before the keeper
	// refuses to evaluate triggers with it.
	PriceStaleness time.Duration

	// TipLamports is attached to every execution bundle for priority.
	TipLamports uint64

	// ListenAddr is the HTTP/WS surface (register params, status, metrics).
	ListenAddr string

	// NatsURL enables settlement-event publishing when non-empty.
	NatsURL string
}

type Program struct {
	// GracePeriod is the window between Triggered and forced expiry
	// (readyExpiresAt = triggeredAt + GracePeriod).
	GracePeriod time.Duration

	// CommitFrequency bounds how stale the execution layer may run before
	// a forced reconciliation back to the base layer.
	CommitFrequency time.Duration

	// ID, DelegationProgram and DelegationAuthority are 32-byte hex
	// addresses identifying the ghost-order program and the delegation
	// layer it hands records to.
	ID                  string
	DelegationProgram   string
	DelegationAuthority string
}

type Node struct {
	DataDir string
	LogFile string
}

type Config struct {
	Keeper  Keeper
	Program Program
	Node    Node
}

func Default() Config {
	return Config{
		Keeper: Keeper{
			PollInterval:   2 * time.Second,
			PriceStaleness: 10 * time.Second,
			TipLamports:    10_000,
			ListenAddr:     ":8080",
		},
		Program: Program{
			GracePeriod:     60 * time.Second,
			CommitFrequency: 30 * time.Second,
			// Vanity devnet addresses; override for any real deployment.
			ID:                  "0x67686f73745f6f726465725f70726f6772616d00000000000000000000000000",
			DelegationProgram:   "0x64656c65676174696f6e5f70726f6772616d0000000000000000000000000000",
			DelegationAuthority: "0x64656c65676174696f6e5f617574686f72697479000000000000000000000000",
		},
		Node: Node{
			DataDir: "data",
			LogFile: "data/keeper.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("KEEPER_POLL_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Keeper.PollInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("KEEPER_PRICE_STALENESS_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Keeper.PriceStaleness = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("KEEPER_TIP_LAMPORTS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Keeper.TipLamports = n
		}
	}
	if v := os.Getenv("KEEPER_LISTEN"); v != "" {
		cfg.Keeper.ListenAddr = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Keeper.NatsURL = v
	}
	if v := os.Getenv("PROGRAM_GRACE_PERIOD_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Program.GracePeriod = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("PROGRAM_COMMIT_FREQUENCY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Program.CommitFrequency = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("GHOST_PROGRAM_ID"); v != "" {
		cfg.Program.ID = v
	}
	if v := os.Getenv("DELEGATION_PROGRAM_ID"); v != "" {
		cfg.Program.DelegationProgram = v
	}
	if v := os.Getenv("DELEGATION_AUTHORITY"); v != "" {
		cfg.Program.DelegationAuthority = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}

	return cfg
}
