package proccfg

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/printer"
	"go/token"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/goccy/go-graphviz"
)

// nodeText renders an AST node as single-line source text.
func nodeText(fset *token.FileSet, n ast.Node) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, n); err != nil {
		return fmt.Sprintf("<%T>", n)
	}
	return buf.String()
}

// DotToImage converts the dot source of the graph to an image file and
// returns its path. If outfname is empty a file in the temporary directory
// is used.
func (g *Graph) DotToImage(outfname string, format string) (string, error) {
	if outfname == "" {
		outfname = filepath.Join(os.TempDir(), "knight_cfg_"+g.Name())
	}
	img := fmt.Sprintf("%s.%s", outfname, format)

	gv := graphviz.New()
	defer gv.Close()

	graph, err := graphviz.ParseBytes(g.Dot())
	if err != nil {
		return "", fmt.Errorf("parsing dot output of %s: %w", g.Name(), err)
	}
	defer graph.Close()

	if err := gv.RenderFilename(graph, graphviz.Format(format), img); err != nil {
		return "", fmt.Errorf("rendering %s: %w", g.Name(), err)
	}
	return img, nil
}

// View renders the graph to an SVG and opens it with the system viewer.
func (g *Graph) View() error {
	img, err := g.DotToImage("", "svg")
	if err != nil {
		return err
	}

	var open string
	switch runtime.GOOS {
	case "darwin":
		open = "open"
	default:
		open = "xdg-open"
	}
	cmd := exec.Command(open, img)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening %s: %w", img, err)
	}
	log.Printf("wrote CFG of %s to %s", g.Name(), img)
	return nil
}
