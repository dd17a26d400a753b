package main

import (
	"bytes"
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AsociacionCA/aca-indice-climatico/internal/catalog"
	"github.com/AsociacionCA/aca-indice-climatico/internal/consolidate"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/ncio"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
	"github.com/AsociacionCA/aca-indice-climatico/internal/sealevel"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

func smallOptions() options {
	return options{
		period:    domain.MustPeriod("1990:1991"),
		grid:      domain.Grid{Lat: []float64{5, 4}, Lon: []float64{-75, -74}},
		stepHours: 12,
		seed:      7,
	}
}

func TestWriteVariable_Consolidates(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	cat, err := catalog.Open(filepath.Join(layout.Root, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	n, err := writeVariable(context.Background(), layout, cat, "wind", smallOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	b, ok, err := cat.Batch(context.Background(), "wind", "1991")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, catalog.StatusComplete, b.Status)
	assert.Positive(t, b.Bytes)

	path, err := consolidate.Run(layout, "wind", []string{"u10", "v10"}, domain.MustPeriod("1990:1991"), observability.DiscardLogger())
	require.NoError(t, err)
	fields, err := ncio.ReadFields(path, "u10", "v10")
	require.NoError(t, err)
	assert.Len(t, fields[0].Times, 730*2)
}

func TestYearFields_Deterministic(t *testing.T) {
	opts := smallOptions()
	a := yearFields("temperature", 1990, opts, rand.New(rand.NewSource(3)))
	b := yearFields("temperature", 1990, opts, rand.New(rand.NewSource(3)))
	require.Len(t, a, 1)
	assert.Equal(t, "K", a[0].Units)
	assert.Equal(t, a[0].Data, b[0].Data)
	assert.Len(t, yearTimes(1992, 6), 366*4)
}

func TestWriteStation_Parses(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStation(&buf, domain.MustPeriod("1990:1999"), rand.New(rand.NewSource(1))))

	p, err := sealevel.Parse(&buf, "572", sealevel.ParseOptions{})
	require.NoError(t, err)
	total := len(p.Records)
	for _, n := range p.Rejected {
		total += n
	}
	assert.Equal(t, 120, total)
	assert.Zero(t, p.Rejected[sealevel.ReasonParse])
	assert.Greater(t, len(p.Records), 100)
}
