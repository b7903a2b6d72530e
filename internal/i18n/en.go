package i18n

// EnMessages English notice catalog
var EnMessages = map[string]string{
	// run outcomes
	"notice.inserted":          "Inserted %d ranked task(s) into %s.",
	"notice.no_tasks":          "No open tasks found in the configured folders.",
	"notice.no_priorities":     "No priorities found under the heading %q.",
	"notice.nothing_to_insert": "The ranking returned no usable tasks.",
	"notice.cancelled":         "Cancelled.",

	// errors
	"error.no_active":    "No active document. Pass --file to choose one.",
	"error.credential":   "No API key configured. Set TASKRANK_API_KEY or provider.api_key.",
	"error.incompatible": "The task index service is missing or incompatible.",
	"error.failed":       "Ranking failed: %s",

	// count prompt
	"prompt.count":   "How many tasks should be ranked?",
	"prompt.invalid": "Please enter a positive whole number.",
	"prompt.hint":    "enter to confirm · esc to cancel",

	// other commands
	"index.rebuilt":    "Indexed %d documents, %d anchors, %d tasks.",
	"init.created":     "Created %s",
	"init.exists":      "Config already exists: %s",
	"doctor.vault":     "Vault",
	"doctor.config":    "Config",
	"doctor.model":     "Model",
	"doctor.heading":   "Priorities heading",
	"doctor.strategy":  "Collect strategy",
	"doctor.taskindex": "Task index",
	"doctor.api_key":   "API key",
	"doctor.set":       "set",
	"doctor.missing":   "missing",
}
