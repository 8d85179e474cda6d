package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	s, err := NewI18nSupport("en")
	require.NoError(t, err)

	assert.Equal(t, "Safety Violation Detected: PPE", s.TWithDefaultLang("alert.subject", map[string]interface{}{"Policy": "PPE"}))
	assert.Equal(t, "严重程度", s.T("zh", "alert.severity", nil))
	assert.Equal(t, "Image 2", s.T("fr", "alert.image", map[string]interface{}{"Index": 2}))
	assert.Equal(t, "alert.missing", s.T("en", "alert.missing", nil))
}

func TestInvalidDefaultFallsBackToEnglish(t *testing.T) {
	s, err := NewI18nSupport("not a tag!")
	require.NoError(t, err)
	assert.Equal(t, "Severity", s.TWithDefaultLang("alert.severity", nil))
}
