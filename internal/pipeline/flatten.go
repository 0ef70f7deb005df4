package pipeline

import (
	"iter"

	"github.com/rs/zerolog/log"

	"iac-crawler/internal/redact"
	"iac-crawler/internal/state"
)

// Flatten yields every resource in the module tree, already redacted,
// depth-first pre-order: a module's own resources come before any
// descendant's, and sibling order is preserved. The sequence is lazy and
// single-use.
func Flatten(out *state.ShowOutput, red *redact.Redactor) iter.Seq[*state.Resource] {
	return func(yield func(*state.Resource) bool) {
		if out == nil || out.Values == nil {
			log.Info().Msg("no state found in terraform show output")
			return
		}
		if out.Values.RootModule == nil {
			log.Info().Msg("no root_module found in terraform show output")
			return
		}
		walkModule(out.Values.RootModule, red, yield)
	}
}

func walkModule(m *state.Module, red *redact.Redactor, yield func(*state.Resource) bool) bool {
	for _, res := range m.Resources {
		if !yield(red.Resource(res)) {
			return false
		}
	}
	for _, child := range m.ChildModules {
		if !walkModule(child, red, yield) {
			return false
		}
	}
	return true
}
