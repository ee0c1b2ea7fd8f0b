package redact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyRedactsTokenAssignment(t *testing.T) {
	in := "starting with DISCORD_TOKEN=abc.def.ghi and more"
	out := Apply(in)
	require.Contains(t, out, "DISCORD_TOKEN=[REDACTED]")
	require.NotContains(t, out, "abc.def.ghi")
}

func TestApplyRedactsAllFourPatterns(t *testing.T) {
	in := "TOKEN=a MISTRAL_API_KEY=b WIKIBOT_PASSWORD=c DISCORD_TOKEN=d"
	out := Apply(in)
	require.NotContains(t, out, "=a")
	require.NotContains(t, out, "=b")
	require.NotContains(t, out, "=c")
	require.NotContains(t, out, "=d")
}

func TestApplyRedactsWebhookURL(t *testing.T) {
	in := "posting to https://discord.com/api/webhooks/1234/verysecrettoken now"
	out := Apply(in)
	require.NotContains(t, out, "verysecrettoken")
	require.Contains(t, out, "[REDACTED]")
}

func TestApplyIdempotent(t *testing.T) {
	in := "TOKEN=supersecret https://hooks.slack.com/services/T0/B0/XXXX"
	once := Apply(in)
	twice := Apply(once)
	require.Equal(t, once, twice)
}

func TestApplyLeavesPlainTextAlone(t *testing.T) {
	in := "the script finished with return code 0"
	require.Equal(t, in, Apply(in))
}
