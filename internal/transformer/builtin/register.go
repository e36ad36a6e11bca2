package builtin

import (
	"tablexform/internal/config"
	"tablexform/internal/transformer"
)

// Stage kinds registered with the transformer factory.
const (
	KindPassthrough            = "passthrough"
	KindDuplicateFirst         = "duplicate_first"
	KindBufferedDuplicateFirst = "buffered_duplicate_first"
	KindRollup                 = "rollup"
	KindRequire                = "require"
	KindCoerce                 = "coerce"
	KindDeDup                  = "dedup"
	KindNormalize              = "normalize"
)

func init() {
	transformer.Register(KindPassthrough, newPassthrough)
	transformer.Register(KindDuplicateFirst, newDuplicateFirst)
	transformer.Register(KindBufferedDuplicateFirst, newBufferedDuplicateFirst)
	transformer.Register(KindRollup, func(o config.Options) (transformer.Stage, error) { return NewRollup(o) })
	transformer.Register(KindRequire, func(o config.Options) (transformer.Stage, error) { return NewRequire(o) })
	transformer.Register(KindCoerce, func(o config.Options) (transformer.Stage, error) { return NewCoerce(o) })
	transformer.Register(KindDeDup, func(o config.Options) (transformer.Stage, error) { return NewDeDup(o) })
	transformer.Register(KindNormalize, func(o config.Options) (transformer.Stage, error) { return NewNormalize(o) })
}
