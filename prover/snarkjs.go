package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tolelom/zkgame/core"
)

// SnarkjsProver shells out to `snarkjs groth16 fullprove` with the game's
// compiled circom artifacts.
type SnarkjsProver struct {
	bin string
	log *zap.Logger
}

// NewSnarkjsProver uses bin (default "snarkjs") from PATH or an absolute path.
func NewSnarkjsProver(bin string, log *zap.Logger) *SnarkjsProver {
	if bin == "" {
		bin = "snarkjs"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SnarkjsProver{bin: bin, log: log.With(zap.String("module", "prover"))}
}

// FullProve implements Prover.
func (p *SnarkjsProver) FullProve(ctx context.Context, in *Inputs, artifact Artifact) (*core.ProofBundle, error) {
	for _, f := range []string{artifact.Wasm, artifact.Zkey} {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("artifact %s: %w", f, err)
		}
	}
	dir, err := os.MkdirTemp("", "zkgame-prove-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	inputPath := filepath.Join(dir, "input.json")
	proofPath := filepath.Join(dir, "proof.json")
	publicPath := filepath.Join(dir, "public.json")
	raw, err := json.Marshal(in.SnarkjsInputs())
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(inputPath, raw, 0o600); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, p.bin, "groth16", "fullprove", inputPath, artifact.Wasm, artifact.Zkey, proofPath, publicPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	p.log.Debug("running snarkjs", zap.String("circuit", artifact.Circuit))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("snarkjs: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var bundle core.ProofBundle
	if err := readJSON(proofPath, &bundle.Proof); err != nil {
		return nil, err
	}
	if err := readJSON(publicPath, &bundle.PublicSignals); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrMalformedProof, filepath.Base(path), err)
	}
	return nil
}
