package dfa

import "github.com/MagicMotion/knight/analysis/proccfg"

// VisitStmtKind selects the statement phase a callback fires in.
type VisitStmtKind int

const (
	VisitPre VisitStmtKind = iota
	VisitEval
	VisitPost
)

func (k VisitStmtKind) String() string {
	switch k {
	case VisitPre:
		return "pre"
	case VisitEval:
		return "eval"
	default:
		return "post"
	}
}

// Tagged callables. Each carries the kind of the analysis it belongs to so
// the dispatchers can order invocations by the computed analysis order.
type (
	AnalyzeBeginFunctionCallBack struct {
		kind AnalysisKind
		run  func(*AnalysisContext)
	}

	AnalyzeEndFunctionCallBack struct {
		kind AnalysisKind
		run  func(proccfg.NodeRef, *AnalysisContext)
	}

	AnalyzeStmtCallBack struct {
		kind AnalysisKind
		run  func(proccfg.StmtRef, *AnalysisContext)
	}

	// MatchStmtCallBack guards a statement callback.
	MatchStmtCallBack func(proccfg.StmtRef) bool

	stmtAnalysisInfo struct {
		cb    AnalyzeStmtCallBack
		match MatchStmtCallBack
		visit VisitStmtKind
	}
)

func MakeBeginFunctionCallBack(kind AnalysisKind, run func(*AnalysisContext)) AnalyzeBeginFunctionCallBack {
	return AnalyzeBeginFunctionCallBack{kind, run}
}

func MakeEndFunctionCallBack(kind AnalysisKind, run func(proccfg.NodeRef, *AnalysisContext)) AnalyzeEndFunctionCallBack {
	return AnalyzeEndFunctionCallBack{kind, run}
}

func MakeStmtCallBack(kind AnalysisKind, run func(proccfg.StmtRef, *AnalysisContext)) AnalyzeStmtCallBack {
	return AnalyzeStmtCallBack{kind, run}
}
