// Package redact applies the outbound redaction filter (spec.md §6) to any
// text headed for a log file or a chat message: webhook-URL path segments
// are replaced, and known secret-bearing assignments have their value
// blanked out.
package redact

import "regexp"

// secretAssignment matches TOKEN=, DISCORD_TOKEN=, MISTRAL_API_KEY=, and
// WIKIBOT_PASSWORD= followed by a run of non-whitespace (the value).
var secretAssignment = regexp.MustCompile(`(?i)\b(TOKEN|DISCORD_TOKEN|MISTRAL_API_KEY|WIKIBOT_PASSWORD)=\S+`)

// webhookURL matches Discord/Slack-style webhook URLs, capturing the scheme,
// host and fixed path prefix; the path segments after it, which carry the
// secret, are what Apply replaces.
var webhookURL = regexp.MustCompile(`(https?://(?:discord(?:app)?\.com/api/webhooks|hooks\.slack\.com))/\S+`)

const redactedMarker = "[REDACTED]"

// Apply redacts secrets from text. It is idempotent: Apply(Apply(x)) ==
// Apply(x), because each pattern maps its own output back to itself (a
// redacted assignment or webhook URL redacts to the same text).
func Apply(text string) string {
	text = webhookURL.ReplaceAllString(text, "$1/"+redactedMarker)
	text = secretAssignment.ReplaceAllStringFunc(text, func(m string) string {
		idx := indexOfEquals(m)
		if idx < 0 {
			return m
		}
		return m[:idx+1] + redactedMarker
	})
	return text
}

func indexOfEquals(s string) int {
	for i, r := range s {
		if r == '=' {
			return i
		}
	}
	return -1
}
