package keeper

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmmmuhib/beneat-sol-sub001/pkg/instruction"
	"github.com/mmmmuhib/beneat-sol-sub001/pkg/program"
)

// BundleSubmitter is the atomic, tip-prioritized submission primitive.
// Implementations wrap whatever bundle relay the deployment uses; the
// keeper only assumes that the instructions land atomically or not at all.
type BundleSubmitter interface {
	Submit(ctx context.Context, instructions []instruction.Instruction, signer *Signer, tipLamports uint64) (string, error)
}

// LocalSubmitter applies bundles directly through an in-process program.
// It serves devnet runs and tests; the program's own lock supplies the
// atomicity a remote bundle relay would.
type LocalSubmitter struct {
	Program *program.Program
	Runtime *program.Runtime
}

func (s *LocalSubmitter) Submit(ctx context.Context, instructions []instruction.Instruction, signer *Signer, tipLamports uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for i, ins := range instructions {
		if err := s.Program.Apply(s.Runtime, ins); err != nil {
			return "", fmt.Errorf("bundle instruction %d: %w", i, err)
		}
	}
	return uuid.NewString(), nil
}
