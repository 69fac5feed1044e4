package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Load_appliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dim: 128\nalpha: 1.2\n"), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	require.EqualValues(t, 128, f.Dim)
	require.EqualValues(t, 16, f.M)
	require.EqualValues(t, float32(1.2), f.Alpha)
	require.EqualValues(t, 2, f.BatchBase)
}

func Test_Load_missingAlphaIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dim: 128\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func Test_File_ToParams(t *testing.T) {
	f := Defaults()
	f.Dim = 64
	f.Alpha = 1.3
	p := f.ToParams()
	require.EqualValues(t, 64, p.Dim)
	require.EqualValues(t, float32(1.3), p.Alpha)
	require.EqualValues(t, 16, p.M)
}
