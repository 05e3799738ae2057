package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadScript reads and validates a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes a script, rejecting unknown fields (so "assertion:"
// instead of "assertions:" is an error) and missing required fields.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScript(&s); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &s, nil
}

func validateScript(s *Script) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, ex := range s.Engine {
		if ex.Request == "" {
			return fmt.Errorf("engine[%d]: request is required", i)
		}
		if !strings.HasSuffix(ex.Request, ";") {
			return fmt.Errorf("engine[%d]: request %q must end with ';'", i, ex.Request)
		}
		if ex.Reply != "" && ex.Error != "" {
			return fmt.Errorf("engine[%d]: reply and error are exclusive", i)
		}
	}

	aliases := make(map[string]bool)
	for i, step := range s.Steps {
		op, ok := ops[step.Op]
		if !ok {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if op.needsGraph && step.Graph == "" {
			return fmt.Errorf("steps[%d]: %s needs a graph", i, step.Op)
		}
		if step.Graph != "" && !aliases[step.Graph] {
			return fmt.Errorf("steps[%d]: graph %q is not bound by an earlier step", i, step.Graph)
		}
		if len(step.Args) < op.minArgs {
			return fmt.Errorf("steps[%d]: %s needs at least %d args", i, step.Op, op.minArgs)
		}
		if step.As != "" {
			if !op.returnsGraph {
				return fmt.Errorf("steps[%d]: %s does not return a graph", i, step.Op)
			}
			aliases[step.As] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, aliases); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, aliases map[string]bool) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRequestCount:
		if a.Request == "" {
			return fmt.Errorf("assertions[%d]: request is required for request_count", index)
		}
		return nil
	case AssertVertexCount, AssertEdgeCount, AssertBangBoxCount, AssertGraphName, AssertRewriteState:
	case AssertVertex:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for vertex", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if !aliases[a.Graph] {
		return fmt.Errorf("assertions[%d]: graph %q is not bound", index, a.Graph)
	}
	if a.Type == AssertRewriteState && a.State != "idle" && a.State != "rewrites_attached" {
		return fmt.Errorf("assertions[%d]: state must be idle or rewrites_attached", index)
	}
	return nil
}
