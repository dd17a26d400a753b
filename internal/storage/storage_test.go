package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomic_ReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")

	require.NoError(t, WriteAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "first")
		return err
	}))
	require.NoError(t, WriteAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "second")
		return err
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestWriteAtomic_FailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	err := WriteAtomic(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return errors.New("boom")
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be cleaned up")
}

func TestWriteAtomicFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.nc")
	require.NoError(t, WriteAtomicFile(path, func(tmp string) error {
		assert.NotEqual(t, path, tmp)
		return os.WriteFile(tmp, []byte("cdf"), 0o644)
	}))
	ok, size := Exists(path)
	assert.True(t, ok)
	assert.Equal(t, int64(3), size)

	sum, n, err := Checksum(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Len(t, sum, 64)
}

func TestWriteAtomicFile_OverlappingWritersUseOwnTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tmax.nc")

	var outerTmp, innerTmp string
	require.NoError(t, WriteAtomicFile(path, func(tmp string) error {
		outerTmp = tmp
		if err := os.WriteFile(tmp, []byte("outer"), 0o644); err != nil {
			return err
		}
		return WriteAtomicFile(path, func(tmp string) error {
			innerTmp = tmp
			return os.WriteFile(tmp, []byte("inner"), 0o644)
		})
	}))

	assert.NotEqual(t, outerTmp, innerTmp)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "outer", string(data), "last rename wins with its own content")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLayout(t *testing.T) {
	l := NewLayout("data")
	assert.Equal(t, filepath.Join("data", "raw", "era5", "temperature", "era5_temperature_1990.nc"), l.RawERA5("temperature", 1990, 0))
	assert.Equal(t, filepath.Join("data", "raw", "era5", "wind", "era5_wind_199002.nc"), l.RawERA5("wind", 1990, 2))
	assert.Equal(t, filepath.Join("data", "processed", "precipitation", "consolidated", "precipitation.nc"), l.ConsolidatedFile("precipitation"))
	assert.Equal(t, filepath.Join("data", "processed", "temperature", "percentile", "tmax.nc"), l.PercentileFile("temperature", "tmax"))
	assert.Equal(t, filepath.Join("data", "raw", "psmsl", "572.metdata"), l.RawPSMSL("572", "metdata"))
	assert.Equal(t, filepath.Join("data", "catalog.db"), l.CatalogFile())
}
