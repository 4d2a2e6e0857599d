package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinPrompts(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{IDAnswerGeneral, IDAnswerGrounded, IDRequirements}, r.ListPrompts())

	sys, user, err := r.Render(IDRequirements, NewContext().
		Set("Ticker", "AAPL").
		Set("Question", "[AAPL] revenue?").
		Set("CurrentYear", 2025))
	require.NoError(t, err)
	assert.Contains(t, sys, "item_7a")
	assert.Contains(t, user, "Ticker: AAPL")
	assert.Contains(t, user, "Current year: 2025")
}

func TestRenderMissingVariable(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Render(IDAnswerGrounded, NewContext().Set("Ticker", "AAPL"))
	assert.Error(t, err)

	_, _, err = r.Render("qa.unknown", NewContext())
	assert.Error(t, err)
}

func TestRenderDefaults(t *testing.T) {
	pt := &PromptTemplate{
		ID:             "t",
		UserPromptTmpl: "{{.Greeting}}, {{.Name}}",
		Variables: []PromptVariable{
			{Name: "Greeting", Default: "Hello"},
			{Name: "Name", Required: true},
		},
	}
	out, err := RenderUserPrompt(pt, NewContext().Set("Name", "filer"))
	require.NoError(t, err)
	assert.Equal(t, "Hello, filer", out)
}

func TestLoadFromDirectoryOverrides(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "prompts", "qa")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	override := `{"system_prompt": "custom grounded", "user_prompt_template": "{{.Question}}"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "answer_grounded.json"), []byte(override), 0o600))

	r := NewRegistry()
	require.NoError(t, LoadFromDirectory(r, base, zerolog.Nop()))

	pt, err := r.GetPrompt(IDAnswerGrounded)
	require.NoError(t, err)
	assert.Equal(t, "custom grounded", pt.SystemPrompt)
	assert.Equal(t, "qa", pt.Category)
	assert.Equal(t, 3, r.Count())
}

func TestLoadFromDirectoryMissing(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, LoadFromDirectory(r, filepath.Join(t.TempDir(), "nope"), zerolog.Nop()))
	assert.Equal(t, 3, r.Count())
}

func TestLoadFromDirectoryBadJSON(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "prompts")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600))
	assert.Error(t, LoadFromDirectory(NewRegistry(), base, zerolog.Nop()))
}
