package config

const (
	DefaultBaseURL           = "https://api.openai.com/v1"
	DefaultModel             = "gpt-4o-mini"
	DefaultProviderTimeoutMS = 60000
	DefaultMaxPromptTokens   = 12000

	DefaultPrioritiesHeading = "Priorities"

	DefaultSyncPollIntervalMS = 100
	DefaultSyncTimeoutMS      = 1500

	DefaultIndexDebounceMS = 250
)
