package pricing

import (
	"fmt"
	"github.com/IlyasAtabaev731/portfolio-tracker/internal/domain/models"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"strings"
)

type referenceFile struct {
	Tickers []models.ReferenceTicker `yaml:"tickers"`
}

// LoadReference reads the reference ticker list from a YAML file:
//
//	tickers:
//	  - symbol: AAPL.US
//	    name: Apple Inc.
func LoadReference(path string) ([]models.ReferenceTicker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference list: %w", err)
	}
	defer f.Close()

	return ReadReference(f)
}

// ReadReference decodes a reference list. Symbols are upper-cased and the
// first occurrence of a duplicate wins.
func ReadReference(r io.Reader) ([]models.ReferenceTicker, error) {
	var file referenceFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode reference list: %w", err)
	}

	seen := make(map[string]bool, len(file.Tickers))
	out := make([]models.ReferenceTicker, 0, len(file.Tickers))
	for i, t := range file.Tickers {
		symbol := strings.ToUpper(strings.TrimSpace(t.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("reference list entry %d has no symbol", i)
		}
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, models.ReferenceTicker{Symbol: symbol, Name: strings.TrimSpace(t.Name)})
	}

	return out, nil
}
