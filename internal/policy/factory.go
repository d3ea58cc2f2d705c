package policy

import (
	"synapse/internal/negotiation"

	"github.com/rs/zerolog/log"
)

// Select picks the policy for an agent from its useLLM flag. LLM agents fall
// back to the rule-based policy when no completer is available.
func Select(role negotiation.Role, cfg negotiation.AgentConfig, c Completer) negotiation.Policy {
	if !cfg.UseLLM {
		return RuleBased{}
	}
	if c == nil {
		log.Warn().Str("role", string(role)).Msg("useLLM set but no reasoner configured, using rule-based policy")
		return RuleBased{}
	}
	return NewLLM(c)
}
