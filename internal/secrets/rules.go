package secrets

// Rule is a regular expression detector applied after gitleaks.
type Rule struct {
	ID          string
	Description string
	Pattern     string
}

// DefaultRules returns patterns for credentials users tend to paste into a
// question: key=value assignments, connection strings and bearer headers.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "credential-assignment",
			Description: "Password or secret assignment",
			Pattern:     `(?i)(?:password|passwd|pwd|secret|client_secret|api[_-]?key|token)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
		},
		{
			ID:          "connection-string",
			Description: "Connection URL with embedded credentials",
			Pattern:     `(?i)(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^:\s/]+:[^@\s]+@\S+`,
		},
		{
			ID:          "bearer-header",
			Description: "Bearer token",
			Pattern:     `(?i)bearer\s+[A-Za-z0-9_\-\.=]{20,}`,
		},
		{
			ID:          "private-key",
			Description: "PEM private key header",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`,
		},
	}
}
