// Package policy enforces which upstream provider types may serve each of the
// gateway's front API surfaces. The matrix is data, not logic; every check
// fails closed.
package policy

import (
	"fmt"
	"sort"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	apperrors "github.com/router-for-me/AntiHubAPI/internal/errors"
)

// Front API surface names as they appear in the allowlist matrix.
const (
	SpecOAIResponses = "OAIResponses"
	SpecOAIChat      = "OAIChat"
	SpecClaude       = "Claude"
	SpecGemini       = "Gemini"
)

// Variant selects which allowlist matrix is enforced.
type Variant string

const (
	// VariantCurrent is the matrix enforced by default.
	VariantCurrent Variant = "current"
	// VariantTarget is the future-state matrix. It stays dormant until
	// configuration opts in.
	VariantTarget Variant = "target"
)

// SpecNotSupportedMessage is the fixed detail returned for every rejection.
// It deliberately does not echo the surface or config type back to the caller.
const SpecNotSupportedMessage = "the requested API surface is not enabled for this upstream provider"

var specAllowlistCurrent = map[string]map[string]bool{
	SpecOAIResponses: {"codex": true},
	SpecOAIChat:      {"antigravity": true, "kiro": true, "qwen": true, "gemini-cli": true},
	SpecClaude:       {"antigravity": true, "kiro": true, "qwen": true},
	SpecGemini:       {"gemini-cli": true, "zai-image": true, "antigravity": true},
}

var specAllowlistTarget = map[string]map[string]bool{
	SpecOAIResponses: {"codex": true},
	SpecOAIChat:      {"antigravity": true, "kiro": true, "qwen": true, "gemini-cli": true, "codex": true},
	SpecClaude:       {"antigravity": true, "kiro": true, "qwen": true},
	SpecGemini:       {"gemini-cli": true, "zai-image": true, "antigravity": true},
}

var activeVariant atomic.Value

func init() {
	activeVariant.Store(VariantCurrent)
}

// SetVariant switches the enforced matrix. Unknown names are rejected so a
// config typo cannot silently disable enforcement.
func SetVariant(v Variant) error {
	switch v {
	case VariantCurrent, VariantTarget:
	default:
		return fmt.Errorf("unknown allowlist variant %q", v)
	}
	if prev := ActiveVariant(); prev != v {
		log.Infof("policy: allowlist variant changed from %s to %s", prev, v)
	}
	activeVariant.Store(v)
	return nil
}

// ActiveVariant reports which matrix is currently enforced.
func ActiveVariant() Variant {
	v, _ := activeVariant.Load().(Variant)
	if v == "" {
		return VariantCurrent
	}
	return v
}

func activeMatrix() map[string]map[string]bool {
	if ActiveVariant() == VariantTarget {
		return specAllowlistTarget
	}
	return specAllowlistCurrent
}

// EnsureSpecAllowed checks whether configType may serve specName under the
// active matrix. On rejection it returns the fixed-message authorization
// error; no upstream call may be attempted after a non-nil return.
func EnsureSpecAllowed(specName, configType string) error {
	if activeMatrix()[specName][configType] {
		return nil
	}
	return apperrors.NewAllowlistRejected(SpecNotSupportedMessage)
}

// AllowedConfigTypes returns the provider types permitted for specName under
// the active matrix, sorted for stable listings.
func AllowedConfigTypes(specName string) []string {
	allowed := activeMatrix()[specName]
	if len(allowed) == 0 {
		return nil
	}
	types := make([]string, 0, len(allowed))
	for configType := range allowed {
		types = append(types, configType)
	}
	sort.Strings(types)
	return types
}
