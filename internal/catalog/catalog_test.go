package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sample() []ScriptDef {
	return []ScriptDef{
		{Key: "vandalism-fr", Command: []string{"python3", "vandalism.py"}, TimeoutSeconds: 240, Public: true, Critical: false, Description: "FR vandalism patrol"},
		{Key: "welcome", Command: []string{"python3", "welcome.py"}, TimeoutSeconds: 540, Public: true, Critical: false, Description: "Welcome newcomers"},
		{Key: "daily-config-backup", Command: []string{"python3", "backup.py"}, TimeoutSeconds: 60, Public: false, Critical: true, Description: "Backup config"},
	}
}

func TestGetKnown(t *testing.T) {
	c := New(sample())
	d, err := c.Get("welcome")
	require.NoError(t, err)
	require.Equal(t, 540, d.TimeoutSeconds)
}

func TestGetUnknown(t *testing.T) {
	c := New(sample())
	_, err := c.Get("does-not-exist")
	require.Error(t, err)
	var unknown *ErrUnknownScript
	require.ErrorAs(t, err, &unknown)
}

func TestPublicKeysSorted(t *testing.T) {
	c := New(sample())
	require.Equal(t, []string{"vandalism-fr", "welcome"}, c.PublicKeys())
}

func TestAllKeysSorted(t *testing.T) {
	c := New(sample())
	require.Equal(t, []string{"daily-config-backup", "vandalism-fr", "welcome"}, c.AllKeys())
}

func TestNewPanicsOnDuplicateKey(t *testing.T) {
	defs := append(sample(), ScriptDef{Key: "welcome", Command: []string{"x"}, TimeoutSeconds: 1})
	require.Panics(t, func() { New(defs) })
}

func TestNewPanicsOnInvalidKey(t *testing.T) {
	defs := []ScriptDef{{Key: "Bad_Key", Command: []string{"x"}, TimeoutSeconds: 1}}
	require.Panics(t, func() { New(defs) })
}

func TestNewPanicsOnEmptyCommand(t *testing.T) {
	defs := []ScriptDef{{Key: "ok", Command: nil, TimeoutSeconds: 1}}
	require.Panics(t, func() { New(defs) })
}
