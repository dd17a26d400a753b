package regional

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/AsociacionCA/aca-indice-climatico/internal/adapter/shapefile"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// RegionEntry is one item of a regions.yaml list. Every polygon of the
// shapefile dissolves into the region.
type RegionEntry struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Shapefile string `yaml:"shapefile"`
}

type regionList struct {
	Regions []RegionEntry `yaml:"regions"`
}

// LoadRegionList reads a YAML region list. Relative shapefile paths resolve
// against the list's directory.
func LoadRegionList(path string) ([]domain.Region, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list regionList
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedInput, path, err)
	}
	if len(list.Regions) == 0 {
		return nil, fmt.Errorf("%w: %s lists no regions", domain.ErrMalformedInput, path)
	}

	seen := make(map[string]bool)
	regions := make([]domain.Region, 0, len(list.Regions))
	for _, e := range list.Regions {
		if e.ID == "" || e.Shapefile == "" {
			return nil, fmt.Errorf("%w: %s: region entries need id and shapefile", domain.ErrMalformedInput, path)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("%w: %s: duplicate region %s", domain.ErrMalformedInput, path, e.ID)
		}
		seen[e.ID] = true
		shp := e.Shapefile
		if !filepath.IsAbs(shp) {
			shp = filepath.Join(filepath.Dir(path), shp)
		}
		name := e.Name
		if name == "" {
			name = e.ID
		}
		reg, err := shapefile.LoadDissolved(shp, e.ID, name)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", e.ID, err)
		}
		regions = append(regions, reg)
	}
	return regions, nil
}
