package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/hcl_adapter"
	"github.com/specialistvlad/mcugraph/internal/json_adapter"
	"github.com/specialistvlad/mcugraph/internal/yaml_adapter"
)

// LoaderFor picks the configuration loader matching the file extension.
func LoaderFor(path string) (config.Loader, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return json_adapter.NewLoader(), nil
	case ".yaml", ".yml":
		return yaml_adapter.NewLoader(), nil
	case ".hcl":
		return hcl_adapter.NewLoader(), nil
	default:
		return nil, fmt.Errorf("unsupported configuration format %q: use .json, .yaml, .yml or .hcl", ext)
	}
}
