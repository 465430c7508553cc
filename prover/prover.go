package prover

import (
	"context"
	"path/filepath"

	"github.com/tolelom/zkgame/core"
)

// Artifact names the compiled circuit a Prover should use. Backends that
// compile in-process only read Circuit.
type Artifact struct {
	Circuit string
	Wasm    string
	Zkey    string
}

// Circuit names used for artifacts on disk.
const (
	CircuitMovement   = "movement"
	CircuitTimeReward = "timeReward"
)

// ArtifactFor returns the artifact for action under dir, using the file
// layout of the game's circuit build (<name>.wasm, <name>_final.zkey).
func ArtifactFor(dir string, action core.Action) Artifact {
	name := CircuitMovement
	if action == core.ActionClaim {
		name = CircuitTimeReward
	}
	return Artifact{
		Circuit: name,
		Wasm:    filepath.Join(dir, name+".wasm"),
		Zkey:    filepath.Join(dir, name+"_final.zkey"),
	}
}

// Prover generates a proof bundle from circuit inputs. Implementations must
// honour ctx cancellation.
type Prover interface {
	FullProve(ctx context.Context, in *Inputs, artifact Artifact) (*core.ProofBundle, error)
}

// Verifier checks a bundle against the verifying key for action.
type Verifier interface {
	Verify(action core.Action, bundle *core.ProofBundle) error
}
