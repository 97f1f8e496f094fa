// Package guard implements the pre-execution security gate for shell
// commands: a deny-list of destructive command prefixes, with an escape
// hatch for command families that support an explicit interactive
// confirmation flag.
package guard

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/shelldon-ai/shelldon/pkg/shell"
)

// Rule denies commands starting with Prefix unless one of ConfirmFlags is
// present in the command text.
type Rule struct {
	Prefix       string
	ConfirmFlags []string
	Reason       string
}

// DefaultRules returns the built-in deny-list: recursive/unguarded delete,
// disk formatting and partitioning, raw disk writes, power control, and
// unguarded move.
func DefaultRules() []Rule {
	interactive := []string{"-i", "--interactive"}
	return []Rule{
		{Prefix: "rm ", ConfirmFlags: interactive, Reason: "file deletion without interactive confirmation"},
		{Prefix: "mv ", ConfirmFlags: interactive, Reason: "file move without interactive confirmation"},
		{Prefix: "mkfs", Reason: "filesystem formatting"},
		{Prefix: "fdisk", Reason: "disk partitioning"},
		{Prefix: "dd ", Reason: "raw disk write"},
		{Prefix: "shutdown", Reason: "power control"},
		{Prefix: "reboot", Reason: "power control"},
	}
}

// Guard is a concurrency-safe deny-list gate. It implements shell.Gate.
// Checking has zero side effects: a rejected command is never forwarded.
type Guard struct {
	mu    sync.RWMutex
	rules []Rule
}

// New creates a guard with the default rules plus any extra denied prefixes.
func New(extraPrefixes ...string) *Guard {
	rules := DefaultRules()
	for _, p := range extraPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			rules = append(rules, Rule{Prefix: strings.ToLower(p), Reason: "configured deny prefix"})
		}
	}
	return &Guard{rules: rules}
}

// Check returns nil if the command may run, or an error wrapping
// shell.ErrCommandBlocked describing why it was rejected.
func (g *Guard) Check(command string) error {
	normalized := strings.ToLower(strings.TrimSpace(command))
	if normalized == "" {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, rule := range g.rules {
		if !strings.HasPrefix(normalized, rule.Prefix) {
			continue
		}
		if hasConfirmFlag(normalized, rule.ConfirmFlags) {
			log.Debug().
				Str("command", command).
				Str("prefix", rule.Prefix).
				Msg("Denied prefix allowed through by confirmation flag")
			return nil
		}
		log.Warn().
			Str("command", command).
			Str("prefix", rule.Prefix).
			Str("reason", rule.Reason).
			Msg("Command rejected by deny-list")
		return fmt.Errorf("%w: %s (%s)", shell.ErrCommandBlocked, strings.TrimSpace(command), rule.Reason)
	}

	return nil
}

// SetRules atomically replaces the rule set (used for config hot reload).
func (g *Guard) SetRules(rules []Rule) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = rules
	log.Info().Int("count", len(rules)).Msg("Guard rules replaced")
}

// Reload rebuilds the rule set from the default rules plus extra prefixes.
func (g *Guard) Reload(extraPrefixes []string) {
	rules := DefaultRules()
	for _, p := range extraPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			rules = append(rules, Rule{Prefix: strings.ToLower(p), Reason: "configured deny prefix"})
		}
	}
	g.SetRules(rules)
}

// Rules returns a copy of the current rule set.
func (g *Guard) Rules() []Rule {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rules := make([]Rule, len(g.rules))
	copy(rules, g.rules)
	return rules
}

// hasConfirmFlag reports whether any of the flags appears as a standalone
// token in the command.
func hasConfirmFlag(command string, flags []string) bool {
	if len(flags) == 0 {
		return false
	}
	for _, field := range strings.Fields(command) {
		for _, flag := range flags {
			if field == flag {
				return true
			}
		}
	}
	return false
}
