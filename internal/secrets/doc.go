// Package secrets redacts credentials from conversation text before it is
// persisted. Detection combines the gitleaks default rule set with a short
// list of assignment-style patterns that gitleaks does not flag on free text.
package secrets
