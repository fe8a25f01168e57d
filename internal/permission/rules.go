package permission

// Rules maps tool names to policies, with a default for unknown tools.
// "always"/"never" prompt answers mutate these for the session.
type Rules struct {
	DefaultPolicy Policy
	ToolPolicies  map[string]Policy
}

// DefaultRules returns the default rule set: read-only tools allowed,
// file modifications and shell commands prompt.
func DefaultRules() *Rules {
	return &Rules{
		DefaultPolicy: PolicyAsk,
		ToolPolicies: map[string]Policy{
			"read":      PolicyAllow,
			"glob":      PolicyAllow,
			"grep":      PolicyAllow,
			"tree":      PolicyAllow,
			"list_dir":  PolicyAllow,
			"web_fetch": PolicyAllow,

			"write": PolicyAsk,
			"edit":  PolicyAsk,
			"bash":  PolicyAsk,
		},
	}
}

// GetPolicy returns the policy for a tool.
func (r *Rules) GetPolicy(toolName string) Policy {
	if policy, ok := r.ToolPolicies[toolName]; ok {
		return policy
	}
	return r.DefaultPolicy
}

// SetPolicy sets the policy for a tool.
func (r *Rules) SetPolicy(toolName string, policy Policy) {
	if r.ToolPolicies == nil {
		r.ToolPolicies = make(map[string]Policy)
	}
	r.ToolPolicies[toolName] = policy
}

// NewRulesFromConfig builds rules from string-valued config entries.
func NewRulesFromConfig(defaultPolicy string, toolPolicies map[string]string) *Rules {
	rules := &Rules{
		DefaultPolicy: parsePolicy(defaultPolicy),
		ToolPolicies:  make(map[string]Policy),
	}
	for tool, policy := range toolPolicies {
		rules.ToolPolicies[tool] = parsePolicy(policy)
	}
	return rules
}

func parsePolicy(s string) Policy {
	switch s {
	case "allow":
		return PolicyAllow
	case "deny":
		return PolicyDeny
	default:
		return PolicyAsk
	}
}
