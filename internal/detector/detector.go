// Package detector classifies chat text against sensitive-content categories
// and produces redacted copies safe for logging.
package detector

import "regexp"

// Category labels a class of sensitive content.
type Category string

const (
	CategoryAPIKey        Category = "api_key"
	CategoryPassword      Category = "password"
	CategoryCreditCard    Category = "credit_card"
	CategoryEmail         Category = "email"
	CategoryGovernmentID  Category = "government_id"
	CategoryCredentialURL Category = "credential_url"
)

// Result is the outcome of a Detect call. Categories holds each matched
// category at most once.
type Result struct {
	Detected   bool       `json:"detected"`
	Categories []Category `json:"categories,omitempty"`
}

// patternTable maps each category to its matchers. Evaluation order is not
// observable: all categories are always collected.
var patternTable = []struct {
	category Category
	patterns []*regexp.Regexp
}{
	{CategoryAPIKey, []*regexp.Regexp{
		regexp.MustCompile(`^(?:sk_live_|sk_test_)[a-zA-Z0-9]{20,}`),           // Stripe
		regexp.MustCompile(`^aws_access_key_id\s*=\s*[A-Z0-9]{20}`),            // AWS
		regexp.MustCompile(`gh[opusr]_[a-zA-Z0-9_]{36,}`),                      // GitHub token family
		regexp.MustCompile(`(?i)[a-zA-Z0-9_-]*api[_-]?key[a-zA-Z0-9_-]*\s*[:=]\s*[a-zA-Z0-9_\-/+]{20,}`),
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-.]+`),
		regexp.MustCompile(`[a-zA-Z0-9]{32,}`), // generic high-entropy token
	}},
	{CategoryPassword, []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:password|passwd|pwd|pass)\s*[:=]\s*\S+`),
		regexp.MustCompile(`(?i)(?:password|passwd|pwd|pass)\s+(?:is|:|=)?\s*\S+`),
		regexp.MustCompile(`(?i)my\s+password\s+(?:is|:)?\s*\S+`),
	}},
	{CategoryCreditCard, []*regexp.Regexp{
		regexp.MustCompile(`\b(?:\d{4}[\s-]?){3}\d{4}\b`),
		regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|3(?:0[0-5]|[68][0-9])[0-9]{11}|6(?:011|5[0-9]{2})[0-9]{12}|(?:2131|1800|35\d{3})\d{11})\b`),
	}},
	{CategoryEmail, []*regexp.Regexp{
		regexp.MustCompile(`[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*\b`),
	}},
	{CategoryGovernmentID, []*regexp.Regexp{
		regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		regexp.MustCompile(`\b\d{3}\s\d{2}\s\d{4}\b`),
	}},
	{CategoryCredentialURL, []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://[a-zA-Z0-9._-]+:[a-zA-Z0-9._-]+@`),
	}},
}

// Detect scans text for sensitive content. Empty input yields a negative
// result, never an error.
func Detect(text string) Result {
	if text == "" {
		return Result{}
	}

	var categories []Category
	for _, entry := range patternTable {
		for _, re := range entry.patterns {
			if re.MatchString(text) {
				categories = append(categories, entry.category)
				break
			}
		}
	}

	return Result{Detected: len(categories) > 0, Categories: categories}
}

var maskRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`sk_[a-zA-Z0-9_]{20,}`), "[API_KEY_MASKED]"},
	{regexp.MustCompile(`gh[opusr]_[a-zA-Z0-9_]{36,}`), "[GITHUB_TOKEN_MASKED]"},
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-.]+`), "[BEARER_TOKEN_MASKED]"},
	{regexp.MustCompile(`(?i)(?:password|passwd|pwd|pass)\s*[:=]\s*\S+`), "[PASSWORD_MASKED]"},
	{regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`), "[CARD_MASKED]"},
	{regexp.MustCompile(`([a-zA-Z0-9])[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]*@[a-zA-Z0-9.-]+`), "${1}***@***"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN_MASKED]"},
	{regexp.MustCompile(`\b\d{3}\s\d{2}\s\d{4}\b`), "[SSN_MASKED]"},
}

// Mask returns a copy of text with sensitive spans replaced by placeholder
// tokens, suitable for log output. Emails keep their first character.
func Mask(text string) string {
	masked := text
	for _, rule := range maskRules {
		masked = rule.re.ReplaceAllString(masked, rule.repl)
	}
	return masked
}
