package dom

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

var (
	// ErrIndexSize is returned when a rule index is out of range.
	ErrIndexSize = errors.New("rule index out of range")
	// ErrSyntax is returned when rule text does not parse to exactly one rule.
	ErrSyntax = errors.New("invalid rule")
)

// RuleInserter is the stylesheet rule-insertion primitive.
type RuleInserter interface {
	InsertRule(rule string, index int) (int, error)
}

// StyleSheet is a CSSOM-like rule list backed by douceur.
type StyleSheet struct {
	mu    sync.Mutex
	rules []*cssast.Rule
}

// NewStyleSheet parses text into a sheet.
func NewStyleSheet(text string) (*StyleSheet, error) {
	sheet, err := parser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse stylesheet: %w", err)
	}
	return &StyleSheet{rules: sheet.Rules}, nil
}

// InsertRule parses a single rule and inserts it at index, returning the index.
func (s *StyleSheet) InsertRule(rule string, index int) (int, error) {
	parsed, err := parser.Parse(rule)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if len(parsed.Rules) != 1 {
		return 0, fmt.Errorf("%w: expected one rule, got %d", ErrSyntax, len(parsed.Rules))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index > len(s.rules) {
		return 0, fmt.Errorf("%w: %d", ErrIndexSize, index)
	}
	s.rules = append(s.rules, nil)
	copy(s.rules[index+1:], s.rules[index:])
	s.rules[index] = parsed.Rules[0]
	return index, nil
}

// Len reports the number of top-level rules.
func (s *StyleSheet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rules)
}

// Rule returns the serialised rule at index.
func (s *StyleSheet) Rule(index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.rules) {
		return "", fmt.Errorf("%w: %d", ErrIndexSize, index)
	}
	return s.rules[index].String(), nil
}

// String serialises the sheet.
func (s *StyleSheet) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, "\n")
}
