package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/signalsfoundry/tracecheck/model"
)

// ParseRoutes builds a route graph from HOP(node, destination, next_hop)
// lines. Other lines are ignored.
func ParseRoutes(r io.Reader) (*model.RouteGraph, error) {
	g := model.NewRouteGraph()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.ToUpper(strings.TrimSpace(sc.Text()))
		if !strings.HasPrefix(line, "HOP") {
			continue
		}
		open, closing := strings.Index(line, "("), strings.Index(line, ")")
		if open < 0 || closing < open {
			return nil, fmt.Errorf("line %d: %w: missing parentheses", lineNo, ErrMalformedLine)
		}
		parts := strings.Split(line[open+1:closing], ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("line %d: %w: HOP needs 3 arguments, got %d", lineNo, ErrMalformedLine, len(parts))
		}
		var ids [3]model.NodeID
		for i, p := range parts {
			id, err := parseNodeID(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w: node id %q: %v", lineNo, ErrMalformedLine, strings.TrimSpace(p), err)
			}
			ids[i] = id
		}
		g.AddHop(ids[0], ids[1], ids[2])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return g, nil
}

// ReadRoutes parses the routing table at path.
func ReadRoutes(path string) (*model.RouteGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := ParseRoutes(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}
