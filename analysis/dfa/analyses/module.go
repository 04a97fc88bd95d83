// Package analyses bundles the analyses shipped with the framework.
//
// The symbol resolver is privileged: every run needs resolved regions and
// symbolic expressions, so it is required regardless of user selection.
package analyses

import (
	"github.com/MagicMotion/knight/analysis/dfa"
	"github.com/MagicMotion/knight/analysis/sexpr"
)

// Kinds collects the kind descriptors of the bundled analyses and their
// domains within one registry.
type Kinds struct {
	SymbolResolver   dfa.AnalysisKind
	IntervalAnalysis dfa.AnalysisKind
	IntervalEnv      dfa.DomainKind
}

// RegisterKinds registers the bundled analysis and domain kinds.
func RegisterKinds(r *dfa.KindRegistry) Kinds {
	return Kinds{
		SymbolResolver: r.RegisterAnalysisKind("SymbolResolver",
			"Resolves identifiers to regions and builds symbolic expressions."),
		IntervalAnalysis: r.RegisterAnalysisKind("IntervalAnalysis",
			"Tracks integer variables with intervals."),
		IntervalEnv: r.RegisterDomainKind("IntervalEnv",
			"Environment mapping regions to integer intervals."),
	}
}

// Builtin holds the constructed bundled analyses.
type Builtin struct {
	Kinds            Kinds
	SymbolResolver   *SymbolResolver
	IntervalAnalysis *IntervalAnalysis
}

// RegisterBuiltinAnalyses registers kinds, constructs the bundled
// analyses, installs their callbacks and dependencies on the manager and
// enables them. The symbol resolver is also marked privileged.
func RegisterBuiltinAnalyses(r *dfa.KindRegistry, mgr *dfa.AnalysisManager, exprs *sexpr.Manager) Builtin {
	kinds := RegisterKinds(r)

	sr := NewSymbolResolver(kinds.SymbolResolver, exprs)
	mgr.RegisterAnalysis(sr)
	mgr.EnableAnalysis(sr)
	mgr.SetPrivileged(kinds.SymbolResolver)

	ia := NewIntervalAnalysis(kinds, r)
	mgr.RegisterAnalysis(ia)
	mgr.EnableAnalysis(ia)

	return Builtin{Kinds: kinds, SymbolResolver: sr, IntervalAnalysis: ia}
}
