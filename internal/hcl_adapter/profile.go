package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/ctxlog"
)

// ProfileLoader decodes MCU profile documents into catalog.Profile values.
type ProfileLoader struct{}

// NewProfileLoader creates a new HCL profile loader.
func NewProfileLoader() *ProfileLoader {
	return &ProfileLoader{}
}

// profileFile is the top-level structure of a profile document.
type profileFile struct {
	MCUs   []*mcuBlock `hcl:"mcu,block"`
	Remain hcl.Body    `hcl:",remain"`
}

type mcuBlock struct {
	Name               string            `hcl:"name,label"`
	SystemClock        int64             `hcl:"system_clock"`
	MaxAddress         int               `hcl:"max_address"`
	ADCMaxValue        int               `hcl:"adc_max_value,optional"`
	GPIOInputTypes     []string          `hcl:"gpio_input_types,optional"`
	GPIOOutputTypes    []string          `hcl:"gpio_output_types,optional"`
	GPIOOpenDrainTypes []string          `hcl:"gpio_open_drain_types,optional"`
	ADCSampleTimes     []string          `hcl:"adc_sample_times,optional"`
	FirmwareFeatures   []string          `hcl:"firmware_features,optional"`
	DMARequests        map[string]string `hcl:"dma_requests,optional"`
	Remain             hcl.Body          `hcl:",remain"`
}

type busBlock struct {
	Name    string   `hcl:"name,label"`
	Divider int      `hcl:"divider,optional"`
	Members []string `hcl:"members"`
}

type extiVectorBlock struct {
	Handler string `hcl:"handler,label"`
	First   int    `hcl:"first"`
	Last    int    `hcl:"last"`
}

type resourceGroupBlock struct {
	Type   string   `hcl:"type,label"`
	Names  []string `hcl:"names,optional"`
	Prefix string   `hcl:"prefix,optional"`
	First  *int     `hcl:"first,optional"`
	Last   *int     `hcl:"last,optional"`
	Bus    []string `hcl:"bus,optional"`
}

type resourceBlock struct {
	Name         string         `hcl:"name,label"`
	Type         string         `hcl:"type"`
	Subtype      string         `hcl:"subtype,optional"`
	Bus          []string       `hcl:"bus,optional"`
	Features     []string       `hcl:"features,optional"`
	DMADRAddress string         `hcl:"dma_dr_address,optional"`
	UseADC       string         `hcl:"use_adc,optional"`
	Handlers     hcl.Expression `hcl:"handlers,optional"`
	Requires     hcl.Expression `hcl:"requires,optional"`
}

// mcuContentSchema lists the nested blocks of an mcu block. They are read
// through Content rather than gohcl slices so that resource and
// resource_group blocks keep their interleaved source order.
var mcuContentSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "bus", LabelNames: []string{"name"}},
		{Type: "exti_vector", LabelNames: []string{"handler"}},
		{Type: "resource_group", LabelNames: []string{"type"}},
		{Type: "resource", LabelNames: []string{"name"}},
	},
}

// LoadFiles parses every profile file at the given paths. Directories are
// searched recursively for .hcl files.
func (l *ProfileLoader) LoadFiles(ctx context.Context, paths ...string) ([]*catalog.Profile, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered profile files.", "count", len(files))

	parser := hclparse.NewParser()
	var out []*catalog.Profile
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		profiles, err := l.decode(ctx, hclFile)
		if err != nil {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, err)
		}
		out = append(out, profiles...)
	}
	return out, nil
}

// Parse decodes profile documents held in memory.
func (l *ProfileLoader) Parse(ctx context.Context, src []byte, filename string) ([]*catalog.Profile, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	profiles, err := l.decode(ctx, hclFile)
	if err != nil {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, err)
	}
	return profiles, nil
}

func (l *ProfileLoader) decode(ctx context.Context, f *hcl.File) ([]*catalog.Profile, error) {
	logger := ctxlog.FromContext(ctx)

	var root profileFile
	if diags := gohcl.DecodeBody(f.Body, nil, &root); diags.HasErrors() {
		return nil, diags
	}

	var out []*catalog.Profile
	for _, mb := range root.MCUs {
		p, err := l.translateMCU(mb)
		if err != nil {
			return nil, fmt.Errorf("mcu %s: %w", mb.Name, err)
		}
		logger.Debug("Profile decoded.", "mcu", p.MCU, "resources", p.Len(), "buses", len(p.Buses))
		out = append(out, p)
	}
	return out, nil
}

func (l *ProfileLoader) translateMCU(mb *mcuBlock) (*catalog.Profile, error) {
	p := &catalog.Profile{
		MCU:                mb.Name,
		SystemClock:        mb.SystemClock,
		MaxAddress:         mb.MaxAddress,
		ADCMaxValue:        mb.ADCMaxValue,
		GPIOInputTypes:     mb.GPIOInputTypes,
		GPIOOutputTypes:    mb.GPIOOutputTypes,
		GPIOOpenDrainTypes: mb.GPIOOpenDrainTypes,
		SampleTimes:        mb.ADCSampleTimes,
		FirmwareFeatures:   mb.FirmwareFeatures,
		DMARequests:        mb.DMARequests,
	}
	if p.DMARequests == nil {
		p.DMARequests = make(map[string]string)
	}

	content, diags := mb.Remain.Content(mcuContentSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	var resources []*catalog.Resource
	for _, block := range content.Blocks {
		switch block.Type {
		case "bus":
			var b busBlock
			if diags := gohcl.DecodeBody(block.Body, nil, &b); diags.HasErrors() {
				return nil, diags
			}
			b.Name = block.Labels[0]
			if b.Divider == 0 {
				b.Divider = 1
			}
			p.Buses = append(p.Buses, catalog.Bus{Name: b.Name, Divider: b.Divider, Members: b.Members})
		case "exti_vector":
			var v extiVectorBlock
			if diags := gohcl.DecodeBody(block.Body, nil, &v); diags.HasErrors() {
				return nil, diags
			}
			p.EXTIVectors = append(p.EXTIVectors, catalog.EXTIVector{Handler: block.Labels[0], First: v.First, Last: v.Last})
		case "resource_group":
			var g resourceGroupBlock
			if diags := gohcl.DecodeBody(block.Body, nil, &g); diags.HasErrors() {
				return nil, diags
			}
			g.Type = block.Labels[0]
			expanded, err := expandGroup(&g)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", block.DefRange, err)
			}
			resources = append(resources, expanded...)
		case "resource":
			var rb resourceBlock
			if diags := gohcl.DecodeBody(block.Body, nil, &rb); diags.HasErrors() {
				return nil, diags
			}
			rb.Name = block.Labels[0]
			r, err := translateResource(&rb)
			if err != nil {
				return nil, fmt.Errorf("resource %s: %w", rb.Name, err)
			}
			resources = append(resources, r)
		}
	}

	cat, err := catalog.New(resources...)
	if err != nil {
		return nil, err
	}
	p.Catalog = cat
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// expandGroup turns a resource_group into individual resources, either from
// an explicit names list or from prefix+first..last.
func expandGroup(g *resourceGroupBlock) ([]*catalog.Resource, error) {
	names := append([]string(nil), g.Names...)
	if g.Prefix != "" {
		if g.First == nil || g.Last == nil {
			return nil, fmt.Errorf("resource_group %s: prefix requires first and last", g.Type)
		}
		for i := *g.First; i <= *g.Last; i++ {
			names = append(names, fmt.Sprintf("%s%d", g.Prefix, i))
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("resource_group %s declares no resources", g.Type)
	}
	out := make([]*catalog.Resource, 0, len(names))
	for _, n := range names {
		out = append(out, &catalog.Resource{Name: n, Type: g.Type, Bus: g.Bus})
	}
	return out, nil
}

func translateResource(rb *resourceBlock) (*catalog.Resource, error) {
	req, err := decodeRequires(rb.Requires)
	if err != nil {
		return nil, err
	}
	order, handlers, err := decodeStringMap(rb.Handlers)
	if err != nil {
		return nil, err
	}
	return &catalog.Resource{
		Name:         rb.Name,
		Type:         rb.Type,
		Subtype:      rb.Subtype,
		Requires:     req,
		Bus:          rb.Bus,
		Features:     rb.Features,
		DMADRAddress: rb.DMADRAddress,
		UseADC:       rb.UseADC,
		Handlers:     handlers,
		HandlerOrder: order,
	}, nil
}
