// Package policy loads the static safety policy that every system instruction
// starts from. The policy is read once at startup and is immutable afterwards.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SubstancePlaceholder is replaced by the flagged substance in clause templates.
const SubstancePlaceholder = "{substance}"

// Document is the YAML layout of a policy file.
type Document struct {
	// Instruction holds the tone constraints and refusal rules.
	Instruction string `yaml:"instruction" validate:"required"`
	// Disclaimer must be included by the model in every medical answer.
	Disclaimer string `yaml:"disclaimer" validate:"required"`
	// FlagClauses maps a safety flag category to its exclusion clause.
	FlagClauses map[string]string `yaml:"flag_clauses" validate:"dive,keys,required,endkeys,required,contains={substance}"`
	// DefaultFlagClause covers categories without a dedicated clause.
	DefaultFlagClause string `yaml:"default_flag_clause" validate:"required,contains={substance}"`
}

// Template is a validated, rendered policy.
type Template struct {
	base              string
	flagClauses       map[string]string
	defaultFlagClause string
}

// Load reads and validates the policy file at path. Any failure here is fatal
// for the gateway: it must not serve without its safety policy.
func Load(path string) (*Template, error) {
	if path == "" {
		return nil, errors.New("policy path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	return Parse(data)
}

// Parse validates and renders a policy document.
func Parse(data []byte) (*Template, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("policy file is empty")
		}
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	doc.Instruction = strings.TrimSpace(doc.Instruction)
	doc.Disclaimer = strings.TrimSpace(doc.Disclaimer)
	doc.DefaultFlagClause = strings.TrimSpace(doc.DefaultFlagClause)

	if err := validator.New().Struct(&doc); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	clauses := make(map[string]string, len(doc.FlagClauses))
	for category, clause := range doc.FlagClauses {
		clauses[strings.ToLower(strings.TrimSpace(category))] = strings.TrimSpace(clause)
	}

	return &Template{
		base:              doc.Instruction + "\n\nMandatory disclaimer (include it whenever you give health information): " + doc.Disclaimer,
		flagClauses:       clauses,
		defaultFlagClause: doc.DefaultFlagClause,
	}, nil
}

// Base returns the rendered policy text without any per-user clauses.
func (t *Template) Base() string {
	return t.base
}

// Clause renders the exclusion clause for one flagged substance.
func (t *Template) Clause(category, substance string) string {
	clause, ok := t.flagClauses[strings.ToLower(category)]
	if !ok {
		clause = t.defaultFlagClause
	}
	clause = strings.ReplaceAll(clause, "{category}", category)
	return strings.ReplaceAll(clause, SubstancePlaceholder, substance)
}
