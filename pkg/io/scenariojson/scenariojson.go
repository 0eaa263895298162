// Package scenariojson reads and writes the canvas persistence shape:
// nodes with type/position/data, edges with an optional sourceHandle
// ("true"/"false" off condition nodes, "loop" into a loop's subgraph).
package scenariojson

import (
	"fmt"

	"github.com/goccy/go-json"

	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mcondition"
	"testflow/engine/pkg/model/mscenario"
)

const (
	sourceHandleThen = "true"
	sourceHandleElse = "false"
	sourceHandleLoop = "loop"
)

type filePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type fileExtract struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type fileFormField struct {
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	IsFile   bool   `json:"is_file,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

type fileBody struct {
	Kind string          `json:"kind"`
	Text string          `json:"text,omitempty"`
	Form []fileFormField `json:"form,omitempty"`
}

type fileNodeData struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ResourceID  string `json:"resourceId,omitempty"`

	// api/sql/script
	TimeoutMS *int64 `json:"timeout_ms,omitempty"`

	// api
	Method     string            `json:"method,omitempty"`
	URL        string            `json:"url,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	Body       *fileBody         `json:"body,omitempty"`
	Assertions []string          `json:"assertions,omitempty"`
	Extract    []fileExtract     `json:"extract,omitempty"`

	// condition
	Expression string `json:"expression,omitempty"`

	// wait
	DurationMS *int64 `json:"duration_ms,omitempty"`

	// sql
	Query string   `json:"query,omitempty"`
	Args  []string `json:"args,omitempty"`

	// loop
	Loops           *int64 `json:"loops,omitempty"`
	BreakExpression string `json:"break_expression,omitempty"`
	ErrorPolicy     string `json:"error_policy,omitempty"`

	// script
	Code string `json:"code,omitempty"`
}

type fileNode struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Position filePosition `json:"position"`
	Data     fileNodeData `json:"data"`
}

type fileEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

type fileScenario struct {
	ID    string     `json:"id,omitempty"`
	Name  string     `json:"name"`
	Nodes []fileNode `json:"nodes"`
	Edges []fileEdge `json:"edges"`
}

// Import parses the canvas shape into a scenario graph. Canvas node ids are
// arbitrary strings; each gets a fresh engine id, edges resolved through
// the mapping.
func Import(data []byte) (*mscenario.ScenarioGraph, error) {
	var file fileScenario
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse scenario json: %w", err)
	}

	g := &mscenario.ScenarioGraph{
		ID:   idwrap.NewNow(),
		Name: file.Name,
	}
	if file.ID != "" {
		if id, err := idwrap.NewText(file.ID); err == nil {
			g.ID = id
		}
	}

	idMap := make(map[string]idwrap.IDWrap, len(file.Nodes))
	for _, fn := range file.Nodes {
		if _, dup := idMap[fn.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", fn.ID)
		}
		node, err := importNode(fn)
		if err != nil {
			return nil, err
		}
		node.ScenarioID = g.ID
		idMap[fn.ID] = node.ID
		g.Nodes = append(g.Nodes, node)
	}

	for _, fe := range file.Edges {
		sourceID, ok := idMap[fe.Source]
		if !ok {
			return nil, fmt.Errorf("edge %q references unknown source node %q", fe.ID, fe.Source)
		}
		targetID, ok := idMap[fe.Target]
		if !ok {
			return nil, fmt.Errorf("edge %q references unknown target node %q", fe.ID, fe.Target)
		}

		handle, err := importHandle(fe.SourceHandle)
		if err != nil {
			return nil, fmt.Errorf("edge %q: %w", fe.ID, err)
		}

		edge := mscenario.NewEdge(idwrap.NewNow(), sourceID, targetID, handle)
		edge.ScenarioID = g.ID
		g.Edges = append(g.Edges, edge)
	}

	return g, nil
}

func importNode(fn fileNode) (mscenario.Node, error) {
	kind, ok := mscenario.NodeKindFromString[fn.Type]
	if !ok {
		return mscenario.Node{}, fmt.Errorf("node %q has unknown type %q", fn.ID, fn.Type)
	}

	node := mscenario.Node{
		ID:          idwrap.NewNow(),
		Name:        fn.Data.Name,
		Description: fn.Data.Description,
		ResourceID:  fn.Data.ResourceID,
		Kind:        kind,
		PositionX:   fn.Position.X,
		PositionY:   fn.Position.Y,
	}
	if node.Name == "" {
		node.Name = fn.ID
	}

	timeoutMS := int64(0)
	if fn.Data.TimeoutMS != nil {
		timeoutMS = *fn.Data.TimeoutMS
	}

	switch kind {
	case mscenario.NodeKindStart:
		// no config

	case mscenario.NodeKindAPI:
		cfg := &mscenario.APIConfig{
			Method:     fn.Data.Method,
			URL:        fn.Data.URL,
			Headers:    fn.Data.Headers,
			Params:     fn.Data.Params,
			Assertions: fn.Data.Assertions,
			TimeoutMS:  timeoutMS,
		}
		for _, ex := range fn.Data.Extract {
			cfg.Extract = append(cfg.Extract, mscenario.ExtractRule{Name: ex.Name, Path: ex.Path})
		}
		if fn.Data.Body != nil {
			bodyKind, ok := mscenario.BodyKindFromString[fn.Data.Body.Kind]
			if !ok {
				return mscenario.Node{}, fmt.Errorf("node %q has unknown body kind %q", fn.ID, fn.Data.Body.Kind)
			}
			cfg.Body.Kind = bodyKind
			cfg.Body.Text = fn.Data.Body.Text
			for _, ff := range fn.Data.Body.Form {
				cfg.Body.Form = append(cfg.Body.Form, mscenario.FormField{
					Name:     ff.Name,
					Value:    ff.Value,
					IsFile:   ff.IsFile,
					FilePath: ff.FilePath,
				})
			}
		}
		node.API = cfg

	case mscenario.NodeKindCondition:
		node.Condition = &mscenario.ConditionConfig{
			Condition: mcondition.Condition{
				Comparisons: mcondition.Comparison{Expression: fn.Data.Expression},
			},
		}

	case mscenario.NodeKindWait:
		cfg := &mscenario.WaitConfig{}
		if fn.Data.DurationMS != nil {
			cfg.DurationMS = *fn.Data.DurationMS
		}
		node.Wait = cfg

	case mscenario.NodeKindSQL:
		cfg := &mscenario.SQLConfig{
			Query:     fn.Data.Query,
			Args:      fn.Data.Args,
			TimeoutMS: timeoutMS,
		}
		for _, ex := range fn.Data.Extract {
			cfg.Extract = append(cfg.Extract, mscenario.ExtractRule{Name: ex.Name, Path: ex.Path})
		}
		node.SQL = cfg

	case mscenario.NodeKindLoop:
		cfg := &mscenario.LoopConfig{
			BreakExpression: fn.Data.BreakExpression,
		}
		if fn.Data.Loops != nil {
			cfg.Loops = *fn.Data.Loops
		}
		switch fn.Data.ErrorPolicy {
		case "", "fail":
			cfg.ErrorPolicy = mscenario.LoopErrorFail
		case "break":
			cfg.ErrorPolicy = mscenario.LoopErrorBreak
		case "ignore":
			cfg.ErrorPolicy = mscenario.LoopErrorIgnore
		default:
			return mscenario.Node{}, fmt.Errorf("node %q has unknown loop error policy %q", fn.ID, fn.Data.ErrorPolicy)
		}
		node.Loop = cfg

	case mscenario.NodeKindScript:
		node.Script = &mscenario.ScriptConfig{Code: fn.Data.Code, TimeoutMS: timeoutMS}
	}

	return node, nil
}

func importHandle(sourceHandle string) (mscenario.EdgeHandle, error) {
	switch sourceHandle {
	case "":
		return mscenario.HandleUnspecified, nil
	case sourceHandleThen:
		return mscenario.HandleThen, nil
	case sourceHandleElse:
		return mscenario.HandleElse, nil
	case sourceHandleLoop:
		return mscenario.HandleLoop, nil
	default:
		return mscenario.HandleUnspecified, fmt.Errorf("unknown sourceHandle %q", sourceHandle)
	}
}

// Export writes a scenario graph back into the canvas shape. Engine ids
// become the canvas node ids.
func Export(g *mscenario.ScenarioGraph) ([]byte, error) {
	file := fileScenario{
		ID:    g.ID.String(),
		Name:  g.Name,
		Nodes: make([]fileNode, 0, len(g.Nodes)),
		Edges: make([]fileEdge, 0, len(g.Edges)),
	}

	for i := range g.Nodes {
		file.Nodes = append(file.Nodes, exportNode(&g.Nodes[i]))
	}

	for _, e := range g.Edges {
		fe := fileEdge{
			ID:     e.ID.String(),
			Source: e.SourceID.String(),
			Target: e.TargetID.String(),
		}
		switch e.Handle {
		case mscenario.HandleThen:
			fe.SourceHandle = sourceHandleThen
		case mscenario.HandleElse:
			fe.SourceHandle = sourceHandleElse
		case mscenario.HandleLoop:
			fe.SourceHandle = sourceHandleLoop
		}
		file.Edges = append(file.Edges, fe)
	}

	return json.MarshalIndent(file, "", "  ")
}

func exportNode(n *mscenario.Node) fileNode {
	fn := fileNode{
		ID:       n.ID.String(),
		Type:     n.Kind.String(),
		Position: filePosition{X: n.PositionX, Y: n.PositionY},
		Data: fileNodeData{
			Name:        n.Name,
			Description: n.Description,
			ResourceID:  n.ResourceID,
		},
	}

	exportTimeout := func(ms int64) {
		if ms > 0 {
			fn.Data.TimeoutMS = &ms
		}
	}

	switch {
	case n.API != nil:
		fn.Data.Method = n.API.Method
		fn.Data.URL = n.API.URL
		fn.Data.Headers = n.API.Headers
		fn.Data.Params = n.API.Params
		fn.Data.Assertions = n.API.Assertions
		exportTimeout(n.API.TimeoutMS)
		for _, ex := range n.API.Extract {
			fn.Data.Extract = append(fn.Data.Extract, fileExtract{Name: ex.Name, Path: ex.Path})
		}
		if n.API.Body.Kind != mscenario.BodyKindNone {
			body := &fileBody{
				Kind: n.API.Body.Kind.String(),
				Text: n.API.Body.Text,
			}
			for _, ff := range n.API.Body.Form {
				body.Form = append(body.Form, fileFormField{
					Name:     ff.Name,
					Value:    ff.Value,
					IsFile:   ff.IsFile,
					FilePath: ff.FilePath,
				})
			}
			fn.Data.Body = body
		}

	case n.Condition != nil:
		fn.Data.Expression = n.Condition.Condition.Comparisons.Expression

	case n.Wait != nil:
		d := n.Wait.DurationMS
		fn.Data.DurationMS = &d

	case n.SQL != nil:
		fn.Data.Query = n.SQL.Query
		fn.Data.Args = n.SQL.Args
		exportTimeout(n.SQL.TimeoutMS)
		for _, ex := range n.SQL.Extract {
			fn.Data.Extract = append(fn.Data.Extract, fileExtract{Name: ex.Name, Path: ex.Path})
		}

	case n.Loop != nil:
		l := n.Loop.Loops
		fn.Data.Loops = &l
		fn.Data.BreakExpression = n.Loop.BreakExpression
		switch n.Loop.ErrorPolicy {
		case mscenario.LoopErrorBreak:
			fn.Data.ErrorPolicy = "break"
		case mscenario.LoopErrorIgnore:
			fn.Data.ErrorPolicy = "ignore"
		default:
			fn.Data.ErrorPolicy = "fail"
		}

	case n.Script != nil:
		fn.Data.Code = n.Script.Code
		exportTimeout(n.Script.TimeoutMS)
	}

	return fn
}
