package adapter

import (
	"fmt"
	"slices"

	"github.com/amishk599/jobradar/internal/model"
)

// constructors maps each supported source name to its adapter.
var constructors = map[string]func() model.SiteAdapter{
	"indeed":          func() model.SiteAdapter { return NewIndeedAdapter() },
	"linkedin":        func() model.SiteAdapter { return NewLinkedInAdapter() },
	"stepstone":       func() model.SiteAdapter { return NewStepStoneAdapter() },
	"xing":            func() model.SiteAdapter { return NewXingAdapter() },
	"stellenanzeigen": func() model.SiteAdapter { return NewStellenanzeigenAdapter() },
	"meinestadt":      func() model.SiteAdapter { return NewMeineStadtAdapter() },
	"jobrapido":       func() model.SiteAdapter { return NewJobRapidoAdapter() },
	"monster":         func() model.SiteAdapter { return NewMonsterAdapter() },
}

// Names returns every supported source name in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New returns the adapter for source.
func New(source string) (model.SiteAdapter, error) {
	ctor, ok := constructors[source]
	if !ok {
		return nil, fmt.Errorf("%w: unknown source %q", model.ErrConfigInvalid, source)
	}
	return ctor(), nil
}

// Registry builds adapters for the given sources, keeping their order.
func Registry(sources []string) ([]model.SiteAdapter, error) {
	out := make([]model.SiteAdapter, 0, len(sources))
	for _, s := range sources {
		a, err := New(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
