package annotate

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Band applies its thresholds to average ratings strictly below Below.
// Below == 0 marks the open-ended top band.
type Band struct {
	Below      int `yaml:"below"`
	Thresholds `yaml:",inline"`
}

type Bands []Band

// DefaultBands mirror ThresholdsForElo.
var DefaultBands = Bands{
	{Below: 1000, Thresholds: beginnerThresholds},
	{Below: 1500, Thresholds: intermediateThresholds},
	{Below: 2000, Thresholds: advancedThresholds},
	{Below: 0, Thresholds: expertThresholds},
}

type bandsFile struct {
	Bands Bands `yaml:"bands"`
}

// LoadThresholds reads a YAML file of the form
//
//	bands:
//	  - {below: 1200, excellent: 50, good: 150, inaccurate: 400, mistake: 1000}
//	  - {below: 0, excellent: 25, good: 90, inaccurate: 220, mistake: 450}
func LoadThresholds(path string) (Bands, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds: %w", err)
	}
	return ParseBands(data)
}

func ParseBands(data []byte) (Bands, error) {
	var f bandsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse thresholds: %w", err)
	}
	if len(f.Bands) == 0 {
		return nil, fmt.Errorf("parse thresholds: no bands")
	}
	for _, b := range f.Bands {
		if b.Below < 0 {
			return nil, fmt.Errorf("parse thresholds: negative bound %d", b.Below)
		}
		if err := b.Thresholds.Validate(); err != nil {
			return nil, err
		}
	}
	bands := append(Bands(nil), f.Bands...)
	sort.SliceStable(bands, func(i, j int) bool {
		bi, bj := bands[i].Below, bands[j].Below
		if bi == 0 || bj == 0 {
			return bj == 0 && bi != 0
		}
		return bi < bj
	})
	return bands, nil
}

func (bs Bands) For(elo int) Thresholds {
	for _, b := range bs {
		if b.Below == 0 || elo < b.Below {
			return b.Thresholds
		}
	}
	if len(bs) == 0 {
		return DefaultThresholds
	}
	return bs[len(bs)-1].Thresholds
}
