package main

import (
	"flag"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"log"
	"os"
	"path/filepath"

	"github.com/MagicMotion/knight/analysis/dfa"
	"github.com/MagicMotion/knight/analysis/dfa/analyses"
	"github.com/MagicMotion/knight/analysis/dfa/checkers"
	"github.com/MagicMotion/knight/analysis/engine"
	"github.com/MagicMotion/knight/analysis/region"
	"github.com/MagicMotion/knight/analysis/sexpr"
	"github.com/MagicMotion/knight/tooling"
	"github.com/MagicMotion/knight/utils"
)

var (
	checkersFlag = flag.String("checkers", "*", "Comma-separated glob list selecting the checkers to run")
	analysesFlag = flag.String("analyses", "*", "Comma-separated glob list selecting the analyses to run")
	configFlag   = flag.String("config", "", "YAML configuration file")
	userFlag     = flag.String("user", "", "The user running the tool")
	useColor     = flag.Bool("use-color", false, "Colorize diagnostics")
	viewCFG      = flag.Bool("view-cfg", false, "Open the control flow graph of each analyzed function")
	dumpCFG      = flag.Bool("dump-cfg", false, "Write the control flow graph of each analyzed function next to the input")
)

func main() {
	flag.Parse()
	files := flag.Args()
	if len(files) == 0 {
		log.Fatal("no input files")
	}

	opts := tooling.DefaultOptions()
	if *configFlag != "" {
		var err error
		opts, err = tooling.LoadOptions(*configFlag)
		if err != nil {
			log.Fatal(err)
		}
	}
	applyFlagOverrides(&opts)

	provider := tooling.NewCommandLineOptionsProvider()
	provider.Opts = opts

	for _, file := range files {
		analyzeFile(file, provider)
	}
}

// applyFlagOverrides layers explicitly set command-line flags over the
// configured options.
func applyFlagOverrides(opts *tooling.Options) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "checkers":
			opts.Checkers = *checkersFlag
		case "analyses":
			opts.Analyses = *analysesFlag
		case "user":
			opts.User = *userFlag
		case "use-color":
			opts.UseColor = *useColor
		case "view-cfg":
			opts.ViewCFG = *viewCFG
		case "dump-cfg":
			opts.DumpCFG = *dumpCFG
		}
	})
	if opts.Checkers == "" {
		opts.Checkers = "*"
	}
	if opts.Analyses == "" {
		opts.Analyses = "*"
	}
}

func analyzeFile(path string, provider tooling.OptionsProvider) {
	opts := provider.OptionsFor(path)

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		log.Fatalf("parsing %s: %v", path, err)
	}

	info := &types.Info{
		Defs:  make(map[*ast.Ident]types.Object),
		Uses:  make(map[*ast.Ident]types.Object),
		Types: make(map[ast.Expr]types.TypeAndValue),
	}
	conf := types.Config{
		Importer: importer.Default(),
		Error:    func(error) {},
	}
	_, _ = conf.Check(file.Name.Name, fset, []*ast.File{file}, info)

	ctx := tooling.NewContext(provider, fset)
	ctx.SetCurrentFile(path)
	ctx.SetTypeInfo(info)
	if wd, err := os.Getwd(); err == nil {
		ctx.SetCurrentBuildDir(wd)
	}

	kinds := dfa.NewKindRegistry()
	analysisMgr := dfa.NewAnalysisManager(ctx, kinds)
	checkerMgr := dfa.NewCheckerManager(ctx, kinds, analysisMgr)
	exprs := sexpr.NewManager()

	builtin := analyses.RegisterBuiltinAnalyses(kinds, analysisMgr, exprs)

	checkerGlobs := utils.CompileGlobs(opts.Checkers)
	checkers.RegisterBuiltinCheckers(kinds, checkerMgr, builtin, checkerGlobs.Contains)

	analysisGlobs := utils.CompileGlobs(opts.Analyses)
	kinds.EachAnalysis(func(k dfa.AnalysisKind, name string) {
		if analysisGlobs.Contains(name) {
			analysisMgr.AddRequiredAnalysis(kinds.AnalysisID(k))
		}
	})

	analysisMgr.ComputeAllRequiredAnalysesByDependencies()
	if err := analysisMgr.ComputeFullOrderAnalysesAfterRegistry(); err != nil {
		log.Fatal(err)
	}

	regionMgr := region.NewManager()
	stateMgr := dfa.NewProgramStateManager(analysisMgr, regionMgr)
	frameMgr := region.NewStackFrameManager(fset)

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}
		frame := frameMgr.CreateTopFrame(fn)

		if opts.DumpCFG {
			out := filepath.Join(filepath.Dir(path), fn.Name.Name+"_cfg")
			if img, err := frame.CFG().DotToImage(out, "svg"); err != nil {
				log.Printf("dumping CFG of %s: %v", fn.Name.Name, err)
			} else {
				log.Printf("wrote CFG of %s to %s", fn.Name.Name, img)
			}
		}
		if opts.ViewCFG {
			if err := frame.CFG().View(); err != nil {
				log.Printf("viewing CFG of %s: %v", fn.Name.Name, err)
			}
		}

		fix := engine.NewIntraProceduralFixpointIterator(ctx, analysisMgr, checkerMgr, stateMgr, frame)
		fix.Run()
		fix.Dispose()
	}
}
