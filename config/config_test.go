package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, "baud", c.IndexCfg.Name)
	assert.True(t, c.IndexCfg.Dynamic)
	assert.Equal(t, "2.0.0", c.IndexCfg.CreatedVersion.String())
	assert.False(t, c.MapperCfg.AssertSerialization)
	assert.Equal(t, "standard", c.AnalysisCfg.DefaultSearchQuoteAnalyzer)
	assert.Equal(t, "info", c.LogCfg.Level)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	c, err := LoadConfigString(`
[index]
name = ".scripts"
dynamic = false
created-version = "1.7.0"

[analysis]
default-analyzer = "simple"
default-search-analyzer = ""
default-search-quote-analyzer = ""
`)
	require.NoError(t, err)
	assert.Equal(t, ScriptIndexName, c.IndexCfg.Name)
	assert.False(t, c.IndexCfg.Dynamic)
	assert.True(t, c.IndexCfg.CreatedVersion.Before(V2_0_0_Beta1))
	assert.Equal(t, "simple", c.AnalysisCfg.DefaultSearchAnalyzer)
	assert.Equal(t, "simple", c.AnalysisCfg.DefaultSearchQuoteAnalyzer)
}

func TestNewConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baud.toml")
	require.NoError(t, os.WriteFile(path, []byte("[mapper]\nassert-serialization = true\n"), 0644))

	c, err := NewConfig(path)
	require.NoError(t, err)
	assert.True(t, c.MapperCfg.AssertSerialization)
	assert.Equal(t, "baud", c.IndexCfg.Name)
}

func TestInvalidConfig(t *testing.T) {
	_, err := LoadConfigString("[log]\nlevel = \"verbose\"\n")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidCfg, errors.Cause(err))

	_, err = LoadConfigString("[index]\ncreated-version = \"two\"\n")
	require.Error(t, err)

	_, err = LoadConfigString("[index]\nname = \"a,b\"\n")
	require.Error(t, err)
}

func TestVersionOrdering(t *testing.T) {
	assert.True(t, V1_7_0.Before(V2_0_0_Beta1))
	assert.True(t, V2_0_0_Beta1.Before(V2_0_0))
	assert.True(t, V2_0_0.OnOrAfter(V2_0_0_Beta1))
	assert.True(t, V2_0_0_Beta1.OnOrAfter(V2_0_0_Beta1))

	v, err := ParseVersion("v2.1.3")
	require.NoError(t, err)
	assert.Equal(t, "2.1.3", v.String())
}
