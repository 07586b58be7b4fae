package rules

// Defaults returns the built-in rule pack. Order matters: credit cards are
// masked before phone numbers so digit runs are not claimed twice, and the
// bearer rule keeps the scheme word while replacing the token.
func Defaults() []Rule {
	return []Rule{
		{
			Name:        "email",
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			Replacement: "[EMAIL]",
		},
		{
			Name:        "ipv4",
			Pattern:     `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
			Replacement: "[IP]",
		},
		{
			Name:        "credit_card",
			Pattern:     `\b(?:\d{4}[-\s]?){3}\d{4}\b`,
			Replacement: "[CREDIT_CARD]",
		},
		{
			Name:        "ssn",
			Pattern:     `\b\d{3}-\d{2}-\d{4}\b`,
			Replacement: "[SSN]",
		},
		{
			Name:        "us_phone",
			Pattern:     `\+?1[-.]?\d{3}[-.]?\d{3}[-.]?\d{4}`,
			Replacement: "[PHONE]",
		},
		{
			Name:        "bearer_token",
			Pattern:     `Bearer\s+[A-Za-z0-9\-._~+/]+=*`,
			Replacement: "Bearer [TOKEN]",
		},
		{
			Name:        "api_key",
			Pattern:     `\bsk-[A-Za-z0-9]{16,}\b`,
			Replacement: "[API_KEY]",
		},
		{
			Name:        "aws_access_key",
			Pattern:     `\bAKIA[0-9A-Z]{16}\b`,
			Replacement: "[AWS_KEY]",
		},
	}
}
