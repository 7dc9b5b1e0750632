package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/mcugraph/internal/ctxlog"
)

// ValidateRegistry checks that every handler describes itself consistently:
// info table tags are set and unique, vocabulary prefixes do not collide.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	tags := make(map[string]string)
	prefixes := make(map[string]string)
	for _, group := range r.order {
		info := r.handlers[group].Info()

		if info.Tag == "" {
			errs = append(errs, fmt.Sprintf("handler '%s': info table tag is empty", group))
		} else if other, ok := tags[info.Tag]; ok {
			errs = append(errs, fmt.Sprintf("handler '%s': info table tag '%s' is already used by '%s'", group, info.Tag, other))
		} else {
			tags[info.Tag] = group
		}

		if info.Prefix == "" {
			logger.Warn("Handler declares no vocabulary prefix, its device count is not published.", "group", group)
		} else if other, ok := prefixes[info.Prefix]; ok {
			errs = append(errs, fmt.Sprintf("handler '%s': vocabulary prefix '%s' is already used by '%s'", group, info.Prefix, other))
		} else {
			prefixes[info.Prefix] = group
		}

		if info.MaxInstances < 0 {
			errs = append(errs, fmt.Sprintf("handler '%s': negative instance limit %d", group, info.MaxInstances))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	logger.Debug("Registry validated.", "handlers", len(r.order))
	return nil
}
