// Package scenarioyaml imports a simplified YAML scenario format: an
// ordered list of steps that the importer wires into a graph. Consecutive
// steps chain sequentially, conditions branch by step name, loops nest
// their steps as an owned subgraph.
package scenarioyaml

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"testflow/engine/pkg/idwrap"
	"testflow/engine/pkg/model/mcondition"
	"testflow/engine/pkg/model/mscenario"
)

type yamlAPI struct {
	Method   string            `yaml:"method"`
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers"`
	Params   map[string]string `yaml:"params"`
	BodyJSON string            `yaml:"body_json"`
	BodyRaw  string            `yaml:"body_raw"`
}

type yamlSQL struct {
	Query string   `yaml:"query"`
	Args  []string `yaml:"args"`
}

type yamlLoop struct {
	Count   int64      `yaml:"count"`
	Break   string     `yaml:"break"`
	OnError string     `yaml:"on_error"`
	Steps   []yamlStep `yaml:"steps"`
}

type yamlStep struct {
	Name       string            `yaml:"name"`
	API        *yamlAPI          `yaml:"api"`
	Condition  string            `yaml:"condition"`
	Then       string            `yaml:"then"`
	Else       string            `yaml:"else"`
	WaitMS     *int64            `yaml:"wait_ms"`
	SQL        *yamlSQL          `yaml:"sql"`
	Loop       *yamlLoop         `yaml:"loop"`
	Script     string            `yaml:"script"`
	Assertions []string          `yaml:"assertions"`
	Extract    map[string]string `yaml:"extract"`
	TimeoutMS  int64             `yaml:"timeout_ms"`
}

type yamlScenario struct {
	Name  string     `yaml:"name"`
	Steps []yamlStep `yaml:"steps"`
}

type importer struct {
	g       *mscenario.ScenarioGraph
	nameIDs map[string]idwrap.IDWrap
}

// Import parses YAML text into a scenario graph with an implicit start
// node.
func Import(data []byte) (*mscenario.ScenarioGraph, error) {
	var doc yamlScenario
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scenario yaml: %w", err)
	}
	if len(doc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", doc.Name)
	}

	imp := &importer{
		g: &mscenario.ScenarioGraph{
			ID:   idwrap.NewNow(),
			Name: doc.Name,
		},
		nameIDs: make(map[string]idwrap.IDWrap),
	}

	startID := idwrap.NewNow()
	imp.g.Nodes = append(imp.g.Nodes, mscenario.Node{
		ID:         startID,
		ScenarioID: imp.g.ID,
		Name:       "start",
		Kind:       mscenario.NodeKindStart,
	})

	if err := imp.declareSteps(doc.Steps); err != nil {
		return nil, err
	}

	firstID := imp.nameIDs[doc.Steps[0].Name]
	imp.addEdge(startID, firstID, mscenario.HandleUnspecified)

	if err := imp.wireSequence(doc.Steps); err != nil {
		return nil, err
	}

	return imp.g, nil
}

// declareSteps creates every node (recursing into loops) so branch targets
// can be resolved by name afterwards.
func (imp *importer) declareSteps(steps []yamlStep) error {
	for i := range steps {
		step := &steps[i]
		if step.Name == "" {
			return fmt.Errorf("step %d has no name", i)
		}
		if _, dup := imp.nameIDs[step.Name]; dup {
			return fmt.Errorf("duplicate step name %q", step.Name)
		}

		node, err := buildNode(step)
		if err != nil {
			return err
		}
		node.ScenarioID = imp.g.ID
		imp.nameIDs[step.Name] = node.ID
		imp.g.Nodes = append(imp.g.Nodes, node)

		if step.Loop != nil {
			if err := imp.declareSteps(step.Loop.Steps); err != nil {
				return err
			}
		}
	}
	return nil
}

// wireSequence chains the steps of one sequence and recurses into loop
// subgraphs. Conditions branch to their named (or next) step and never get
// an unlabeled continuation.
func (imp *importer) wireSequence(steps []yamlStep) error {
	for i := range steps {
		step := &steps[i]
		id := imp.nameIDs[step.Name]

		nextName := ""
		if i+1 < len(steps) {
			nextName = steps[i+1].Name
		}

		if step.Condition != "" {
			thenName := step.Then
			if thenName == "" {
				thenName = nextName
			}
			if thenName != "" {
				target, err := imp.lookup(step.Name, thenName)
				if err != nil {
					return err
				}
				imp.addEdge(id, target, mscenario.HandleThen)
			}
			if step.Else != "" {
				target, err := imp.lookup(step.Name, step.Else)
				if err != nil {
					return err
				}
				imp.addEdge(id, target, mscenario.HandleElse)
			}
			continue
		}

		if step.Loop != nil {
			if len(step.Loop.Steps) > 0 {
				firstID := imp.nameIDs[step.Loop.Steps[0].Name]
				imp.addEdge(id, firstID, mscenario.HandleLoop)
				if err := imp.wireSequence(step.Loop.Steps); err != nil {
					return err
				}
			}
		}

		if nextName != "" {
			imp.addEdge(id, imp.nameIDs[nextName], mscenario.HandleUnspecified)
		}
	}
	return nil
}

func (imp *importer) lookup(stepName, targetName string) (idwrap.IDWrap, error) {
	id, ok := imp.nameIDs[targetName]
	if !ok {
		return idwrap.IDWrap{}, fmt.Errorf("step %q references unknown step %q", stepName, targetName)
	}
	return id, nil
}

func (imp *importer) addEdge(source, target idwrap.IDWrap, handle mscenario.EdgeHandle) {
	edge := mscenario.NewEdge(idwrap.NewNow(), source, target, handle)
	edge.ScenarioID = imp.g.ID
	imp.g.Edges = append(imp.g.Edges, edge)
}

func buildNode(step *yamlStep) (mscenario.Node, error) {
	node := mscenario.Node{
		ID:   idwrap.NewNow(),
		Name: step.Name,
	}

	switch {
	case step.API != nil:
		node.Kind = mscenario.NodeKindAPI
		cfg := &mscenario.APIConfig{
			Method:     step.API.Method,
			URL:        step.API.URL,
			Headers:    step.API.Headers,
			Params:     step.API.Params,
			Assertions: step.Assertions,
			TimeoutMS:  step.TimeoutMS,
		}
		switch {
		case step.API.BodyJSON != "":
			cfg.Body = mscenario.Body{Kind: mscenario.BodyKindJSON, Text: step.API.BodyJSON}
		case step.API.BodyRaw != "":
			cfg.Body = mscenario.Body{Kind: mscenario.BodyKindRaw, Text: step.API.BodyRaw}
		}
		for name, path := range step.Extract {
			cfg.Extract = append(cfg.Extract, mscenario.ExtractRule{Name: name, Path: path})
		}
		node.API = cfg

	case step.Condition != "":
		node.Kind = mscenario.NodeKindCondition
		node.Condition = &mscenario.ConditionConfig{
			Condition: mcondition.Condition{
				Comparisons: mcondition.Comparison{Expression: step.Condition},
			},
		}

	case step.WaitMS != nil:
		node.Kind = mscenario.NodeKindWait
		node.Wait = &mscenario.WaitConfig{DurationMS: *step.WaitMS}

	case step.SQL != nil:
		node.Kind = mscenario.NodeKindSQL
		cfg := &mscenario.SQLConfig{
			Query:     step.SQL.Query,
			Args:      step.SQL.Args,
			TimeoutMS: step.TimeoutMS,
		}
		for name, path := range step.Extract {
			cfg.Extract = append(cfg.Extract, mscenario.ExtractRule{Name: name, Path: path})
		}
		node.SQL = cfg

	case step.Loop != nil:
		node.Kind = mscenario.NodeKindLoop
		cfg := &mscenario.LoopConfig{
			Loops:           step.Loop.Count,
			BreakExpression: step.Loop.Break,
		}
		switch step.Loop.OnError {
		case "", "fail":
			cfg.ErrorPolicy = mscenario.LoopErrorFail
		case "break":
			cfg.ErrorPolicy = mscenario.LoopErrorBreak
		case "ignore":
			cfg.ErrorPolicy = mscenario.LoopErrorIgnore
		default:
			return mscenario.Node{}, fmt.Errorf("step %q has unknown on_error %q", step.Name, step.Loop.OnError)
		}
		node.Loop = cfg

	case step.Script != "":
		node.Kind = mscenario.NodeKindScript
		node.Script = &mscenario.ScriptConfig{Code: step.Script, TimeoutMS: step.TimeoutMS}

	default:
		return mscenario.Node{}, fmt.Errorf("step %q has no recognizable kind", step.Name)
	}

	return node, nil
}
