package extraction

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDocumentType indicates a config lookup missed and no fallback
// config is registered. With the default registry this is unreachable;
// callers must not rely on it.
var ErrUnknownDocumentType = errors.New("extraction: unknown document type")

// GenericDocumentType is the fallback document type tag.
const GenericDocumentType = "generic"

// Config holds per-document-type extraction configuration. Immutable after
// registration; the registry is read concurrently without locks.
type Config struct {
	DocumentType       string
	Prompt             string
	Examples           []WorkedExample
	ModelID            string
	ChunkSize          int
	ChunkOverlap       int
	PassCount          int
	Temperature        float64
	MaxParallelWindows int
}

// withDefaults fills zero fields with safe defaults.
func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = c.ChunkSize / 10
	}
	if c.PassCount <= 0 {
		c.PassCount = 1
	}
	if c.MaxParallelWindows <= 0 {
		c.MaxParallelWindows = 4
	}
	if c.ModelID == "" {
		c.ModelID = "gpt-4o-mini"
	}
	return c
}

// Registry maps document-type tags to extraction configs. Pure lookup,
// no I/O; populated once at startup.
type Registry struct {
	configs  map[string]Config
	fallback *Config
}

// NewRegistry builds a registry with the built-in document types and the
// generic fallback registered.
func NewRegistry() *Registry {
	r := &Registry{configs: make(map[string]Config)}
	for _, cfg := range builtinConfigs() {
		r.Register(cfg)
	}
	return r
}

// Register adds a config. Registering GenericDocumentType installs the
// fallback used for unknown document types.
func (r *Registry) Register(cfg Config) {
	cfg = cfg.withDefaults()
	key := strings.ToLower(cfg.DocumentType)
	r.configs[key] = cfg
	if key == GenericDocumentType {
		r.fallback = &cfg
	}
}

// ConfigFor resolves the config for a document type, falling back to the
// generic config for unknown types.
func (r *Registry) ConfigFor(documentType string) (Config, error) {
	if cfg, ok := r.configs[strings.ToLower(strings.TrimSpace(documentType))]; ok {
		return cfg, nil
	}
	if r.fallback != nil {
		return *r.fallback, nil
	}
	return Config{}, fmt.Errorf("%w: %q", ErrUnknownDocumentType, documentType)
}

const defaultChunkSize = 4000

const basePrompt = `You extract structured legal information from document text.
Identify every clause in the text and label it with one of these classes:
PARTY_IDENTIFICATION, FINANCIAL_TERMS, DATE_TERM, TERMINATION, OBLIGATION,
RISK_FACTOR, OTHER.

For each clause return:
- "class": the clause class
- "text": the clause text, copied verbatim from the input
- "attributes": a string map; include "key_terms" as a comma-separated list
  of the distinguishing terms (party names, amounts, defined terms)
- "confidence": your confidence in the label, 0.0 to 1.0

Respond ONLY with a JSON object of the form {"extractions": [...]}.`

func builtinConfigs() []Config {
	return []Config{
		{
			DocumentType: GenericDocumentType,
			Prompt:       basePrompt,
			Temperature:  0.2,
		},
		{
			DocumentType: "rental",
			Prompt: basePrompt + `

The document is a rental or lease agreement. Pay particular attention to
rent amounts, deposits, payment schedules, lease term dates, renewal and
termination conditions, and landlord/tenant identification.`,
			Temperature: 0.2,
			Examples: []WorkedExample{
				{
					Text: "Monthly rent: $1,200 due on the 1st of each month.",
					Extractions: []RawExtraction{
						{
							Class: ClauseFinancial,
							Text:  "Monthly rent: $1,200 due on the 1st of each month.",
							Attributes: map[string]string{
								"key_terms": "rent, $1,200, monthly",
							},
							Confidence: 0.95,
						},
					},
				},
			},
		},
		{
			DocumentType: "nda",
			Prompt: basePrompt + `

The document is a non-disclosure agreement. Pay particular attention to
the definition of confidential information, disclosure obligations,
duration of confidentiality, and permitted-use carve-outs.`,
			Temperature: 0.2,
		},
		{
			DocumentType: "employment",
			Prompt: basePrompt + `

The document is an employment agreement. Pay particular attention to
compensation, benefits, start dates, probation and notice periods,
non-compete and termination clauses.`,
			Temperature: 0.2,
		},
		{
			DocumentType: "service_agreement",
			Prompt: basePrompt + `

The document is a service agreement. Pay particular attention to fees,
payment terms, service levels, deliverable deadlines, liability caps and
termination for convenience or cause.`,
			Temperature: 0.2,
		},
	}
}
