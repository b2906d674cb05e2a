package vocab

import (
	"testing"

	"ats-resume-go/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestDefaultVocabulary(t *testing.T) {
	v := Default()
	assert.Len(t, v.Languages(), 16)
	assert.Equal(t, "English", v.Languages()[0].Display)
	assert.Contains(t, v.Technical(), "c++")
	assert.Contains(t, v.Tools(), "power bi")
	assert.Len(t, v.ActionVerbs(), 19)

	display, ok := v.LookupLanguage("  TAMIL ")
	assert.True(t, ok)
	assert.Equal(t, "Tamil", display)
	_, ok = v.LookupLanguage("klingon")
	assert.False(t, ok)
}

func TestAccessorsReturnCopies(t *testing.T) {
	v := Default()
	tech := v.Technical()
	tech[0] = "mutated"
	assert.Equal(t, "python", v.Technical()[0])
}

func TestFromConfigOverrides(t *testing.T) {
	v := FromConfig(config.VocabularyConfig{
		Languages: map[string]string{"japanese": "Japanese", "english": "English", "blank": " "},
		Technical: []string{" Go ", "", "Rust"},
	})

	langs := v.Languages()
	assert.Equal(t, []Language{{"english", "English"}, {"japanese", "Japanese"}}, langs)
	assert.Equal(t, []string{"go", "rust"}, v.Technical())
	// 未覆盖的词表保持默认
	assert.Equal(t, Default().Tools(), v.Tools())
	assert.True(t, v.IsCanonicalLanguage("Japanese"))
	assert.False(t, v.IsCanonicalLanguage("Tamil"))
}
