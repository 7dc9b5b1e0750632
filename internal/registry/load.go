package registry

import (
	"context"

	"github.com/specialistvlad/mcugraph/internal/allocator"
	"github.com/specialistvlad/mcugraph/internal/config"
	"github.com/specialistvlad/mcugraph/internal/ctxlog"
)

// Binding pairs a configuration group with the handler allocating it.
type Binding struct {
	Group   *config.Group
	Handler allocator.Handler
}

// Bind resolves the handler of every group of the document, in declaration
// order. The first unknown group fails the whole document.
func (r *Registry) Bind(ctx context.Context, doc *config.Document) ([]Binding, error) {
	logger := ctxlog.FromContext(ctx)
	out := make([]Binding, 0, len(doc.Groups))
	for _, g := range doc.Groups {
		h, err := r.Lookup(g.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, Binding{Group: g, Handler: h})
	}
	logger.Debug("Device groups bound to handlers.", "groups", len(out))
	return out, nil
}
