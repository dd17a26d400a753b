package sealevel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// DefaultStations are the Colombian gauges processed when no list is given.
var DefaultStations = []domain.Station{
	{ID: "572", Name: "Cartagena", Product: "met"},
	{ID: "456", Name: "Buenaventura", Product: "met"},
	{ID: "714", Name: "Riohacha", Product: "met"},
	{ID: "639", Name: "Tumaco", Product: "met"},
	{ID: "2116", Name: "San Andres", Product: "rlr"},
}

type stationList struct {
	Stations []domain.Station `yaml:"stations"`
}

// LoadStations reads a YAML station list. An empty path returns
// DefaultStations.
func LoadStations(path string) ([]domain.Station, error) {
	if path == "" {
		return DefaultStations, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list stationList
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedInput, path, err)
	}
	if len(list.Stations) == 0 {
		return nil, fmt.Errorf("%w: %s lists no stations", domain.ErrMalformedInput, path)
	}
	seen := make(map[string]bool)
	for k, st := range list.Stations {
		if st.ID == "" {
			return nil, fmt.Errorf("%w: %s: station %d has no id", domain.ErrMalformedInput, path, k+1)
		}
		if seen[st.ID] {
			return nil, fmt.Errorf("%w: %s: duplicate station %s", domain.ErrMalformedInput, path, st.ID)
		}
		seen[st.ID] = true
		if st.Product == "" {
			list.Stations[k].Product = "met"
		}
		if st.Name == "" {
			list.Stations[k].Name = st.ID
		}
	}
	return list.Stations, nil
}
