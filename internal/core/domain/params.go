package domain

import (
	"fmt"
	"strings"
)

// MeshInit selects how the remote service initializes the mesh before refinement.
type MeshInit string

const (
	MeshInitStd  MeshInit = "std"
	MeshInitThin MeshInit = "thin"
)

func ParseMeshInit(s string) (MeshInit, error) {
	switch m := MeshInit(strings.ToLower(strings.TrimSpace(s))); m {
	case MeshInitStd, MeshInitThin:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mesh init %q", ErrInvalidParameters, s)
	}
}

// GenerationParameters is the flat configuration record sent with every prediction.
type GenerationParameters struct {
	RemoveBackground bool
	Seed             int
	GenerateVideo    bool
	RefineDetails    bool
	ExpansionWeight  float64
	MeshInit         MeshInit
}

func (p GenerationParameters) Validate() error {
	if p.Seed < 0 {
		return fmt.Errorf("%w: seed must not be negative", ErrInvalidParameters)
	}
	if p.ExpansionWeight < 0 || p.ExpansionWeight > 1 {
		return fmt.Errorf("%w: expansion weight %.3f outside [0,1]", ErrInvalidParameters, p.ExpansionWeight)
	}
	if _, err := ParseMeshInit(string(p.MeshInit)); err != nil {
		return err
	}
	return nil
}
