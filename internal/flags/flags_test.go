package flags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv_TruthyValues(t *testing.T) {
	for _, v := range []string{"true", "1", "yes", "on", "TRUE", " On "} {
		s := FromEnv(env(map[string]string{"JOYSCROLL_ENABLED": v, "JOYSCROLL_EXPLORATION": v}))
		assert.True(t, s.Enabled(Exploration), "value %q", v)
	}
	for _, v := range []string{"false", "0", "no", "", "enabled"} {
		s := FromEnv(env(map[string]string{"JOYSCROLL_ENABLED": "true", "JOYSCROLL_EXPLORATION": v}))
		assert.False(t, s.Enabled(Exploration), "value %q", v)
	}
}

func TestEnabled_MasterSwitchGatesEverything(t *testing.T) {
	s := FromEnv(env(map[string]string{
		"JOYSCROLL_CATEGORY_AFFINITY": "true",
		"JOYSCROLL_EXPLORATION":       "true",
	}))
	assert.False(t, s.Master())
	assert.False(t, s.Enabled(CategoryAffinity))
	assert.False(t, s.Enabled(Exploration))
	assert.True(t, s.All()["JOYSCROLL_EXPLORATION"])
}

func TestZeroValueIsDisabled(t *testing.T) {
	var s Set
	assert.False(t, s.Enabled(ContentBlocking))
	assert.Len(t, s.All(), 9)
}

func TestNew(t *testing.T) {
	s := New(true, CategoryAffinity)
	assert.True(t, s.Enabled(CategoryAffinity))
	assert.False(t, s.Enabled(Exploration))
}
