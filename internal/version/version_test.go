package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_DefaultValues(t *testing.T) {
	assert.Equal(t, "dev", Version)
	assert.Equal(t, "dev", Commit)
	assert.Equal(t, "unknown", BuildTime)
}

func TestGet(t *testing.T) {
	info := Get("bugtracker")

	assert.Equal(t, "bugtracker", info.Service)
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, Commit, info.Commit)
	assert.Equal(t, BuildTime, info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestInfo_String(t *testing.T) {
	info := Info{Service: "adm", Version: "v1.2.0", Commit: "abc123", BuildTime: "2024-03-01", GoVersion: "go1.25.0"}
	assert.Equal(t, "adm v1.2.0 (commit abc123, built 2024-03-01, go1.25.0)", info.String())
}

func TestInfo_JSON(t *testing.T) {
	data, err := json.Marshal(Get("bugtracker"))
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "bugtracker", decoded["service"])
	assert.Contains(t, decoded, "build_time")
	assert.Contains(t, decoded, "go_version")
}
