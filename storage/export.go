package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tolelom/zkgame/core"
)

// Save-file identification.
const (
	ExportVersion = "1.0.0"
	GameVersion   = "1.0.0"
	ExportType    = "player_save"
)

// ErrInvalidDocument is returned by ParseExport for documents that fail
// schema or consistency checks.
var ErrInvalidDocument = errors.New("invalid save document")

//go:embed schema/player_save.schema.json
var saveSchemaJSON string

var (
	saveSchemaOnce sync.Once
	saveSchema     *jsonschema.Schema
	saveSchemaErr  error
)

func compiledSaveSchema() (*jsonschema.Schema, error) {
	saveSchemaOnce.Do(func() {
		saveSchema, saveSchemaErr = jsonschema.CompileString("player_save.schema.json", saveSchemaJSON)
	})
	return saveSchema, saveSchemaErr
}

// ExportMetadata describes the producer of a save file.
type ExportMetadata struct {
	GameVersion string `json:"game_version"`
	ExportType  string `json:"export_type"`
}

// ExportDocument is the portable save format.
type ExportDocument struct {
	Version    string            `json:"version"`
	ExportDate string            `json:"export_date"`
	Player     *core.PlayerState `json:"player"`
	Metadata   ExportMetadata    `json:"metadata"`
}

// Export renders p as an indented save document.
func Export(p *core.PlayerState, now time.Time) ([]byte, error) {
	doc := ExportDocument{
		Version:    ExportVersion,
		ExportDate: now.UTC().Format(time.RFC3339),
		Player:     p.Clone(),
		Metadata:   ExportMetadata{GameVersion: GameVersion, ExportType: ExportType},
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ParseExport validates data against the save schema and decodes it. Invalid
// documents are rejected, never coerced.
func ParseExport(data []byte) (*ExportDocument, error) {
	schema, err := compiledSaveSchema()
	if err != nil {
		return nil, fmt.Errorf("compile save schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var doc ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := checkPlayer(doc.Player); err != nil {
		return nil, err
	}
	return &doc, nil
}

// checkPlayer covers what the schema cannot express.
func checkPlayer(p *core.PlayerState) error {
	if p.Inventory == nil {
		p.Inventory = map[string]uint64{}
	}
	seen := make(map[uint64]bool, len(p.ExploredAreas))
	for _, a := range p.ExploredAreas {
		if seen[a.ID] {
			return fmt.Errorf("%w: explored area %d listed twice", ErrInvalidDocument, a.ID)
		}
		seen[a.ID] = true
	}
	if !seen[p.Position.AreaID] {
		return fmt.Errorf("%w: current area %d is not explored", ErrInvalidDocument, p.Position.AreaID)
	}
	return nil
}
