package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/ctxlog"
	"github.com/specialistvlad/mcugraph/internal/fsutil"
)

// Loader is the HCL implementation of the config.Loader interface.
//
// A configuration holds one `firmware` block and any number of
// `device "<group>" "<name>"` blocks. Nested blocks without labels become
// nested objects, so `i2c_bus { ... }` inside firmware is equivalent to the
// JSON `"i2c_bus": { ... }`.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and decodes the configuration file at path.
func (l *Loader) Load(ctx context.Context, path string) (*config.Document, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read HCL file %s: %w", path, err)
	}
	doc, err := l.Parse(src, path)
	if err != nil {
		return nil, err
	}

	logger.Debug("HCL loading complete.", "groups", len(doc.Groups))
	return doc, nil
}

// Parse decodes a configuration document from memory.
func (l *Loader) Parse(src []byte, filename string) (*config.Document, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	root, err := l.translateFile(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, err)
	}
	return config.FromObject(root)
}

func (l *Loader) translateFile(f *hcl.File) (*config.Object, error) {
	body, ok := f.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("unsupported HCL body type %T", f.Body)
	}
	for name, attr := range body.Attributes {
		return nil, fmt.Errorf("%s: unexpected top-level attribute %q", attr.SrcRange, name)
	}

	root := config.NewObject()
	devices := config.NewObject()
	for _, block := range body.Blocks {
		switch block.Type {
		case config.KeyFirmware:
			if len(block.Labels) != 0 {
				return nil, fmt.Errorf("%s: firmware block takes no labels", block.DefRange())
			}
			if root.Has(config.KeyFirmware) {
				return nil, fmt.Errorf("%s: duplicate firmware block", block.DefRange())
			}
			fw, err := bodyToObject(block.Body)
			if err != nil {
				return nil, err
			}
			root.Set(config.KeyFirmware, fw)
		case "device":
			if len(block.Labels) != 2 {
				return nil, fmt.Errorf("%s: device block needs a group and a name label", block.DefRange())
			}
			group, name := block.Labels[0], block.Labels[1]
			g, ok := devices.Get(group)
			if !ok {
				g = config.NewObject()
				devices.Set(group, g)
			}
			gObj := g.(*config.Object)
			if gObj.Has(name) {
				return nil, fmt.Errorf("%s: device %s is declared twice in %s", block.DefRange(), name, group)
			}
			dev, err := bodyToObject(block.Body)
			if err != nil {
				return nil, err
			}
			gObj.Set(name, dev)
		default:
			return nil, fmt.Errorf("%s: unexpected block type %q", block.DefRange(), block.Type)
		}
	}
	if devices.Len() > 0 {
		root.Set(config.KeyDevices, devices)
	}
	return root, nil
}

// bodyToObject converts a block body into an ordered object. Attributes and
// unlabeled nested blocks are merged in source order.
func bodyToObject(body *hclsyntax.Body) (*config.Object, error) {
	type item struct {
		offset int
		key    string
		attr   *hclsyntax.Attribute
		block  *hclsyntax.Block
	}
	var items []item
	for name, attr := range body.Attributes {
		items = append(items, item{offset: attr.SrcRange.Start.Byte, key: name, attr: attr})
	}
	for _, b := range body.Blocks {
		if len(b.Labels) != 0 {
			return nil, fmt.Errorf("%s: nested block %q takes no labels", b.DefRange(), b.Type)
		}
		items = append(items, item{offset: b.TypeRange.Start.Byte, key: b.Type, block: b})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].offset < items[j].offset })

	obj := config.NewObject()
	for _, it := range items {
		if obj.Has(it.key) {
			return nil, fmt.Errorf("duplicate key %q", it.key)
		}
		if it.block != nil {
			sub, err := bodyToObject(it.block.Body)
			if err != nil {
				return nil, err
			}
			obj.Set(it.key, sub)
			continue
		}
		v, err := decodeValue(it.attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", it.key, err)
		}
		obj.Set(it.key, v)
	}
	return obj, nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			files, err := fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		} else if filepath.Ext(path) == ".hcl" {
			add(path)
		}
	}
	return allFiles, nil
}
