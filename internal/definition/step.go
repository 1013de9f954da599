package definition

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Step is one entry in an action sequence: a shell line, a cross-container
// call, or a file drop.
type Step interface {
	step()
}

// ShellLine is a templated command executed inside the container.
type ShellLine string

func (ShellLine) step() {}

// Call invokes an action on another container, forwarding templated
// parameters. Declared with the !rpc tag, either as one space-delimited
// scalar or as a token list: target, action, then key=value pairs.
type Call struct {
	Target string
	Action string
	Params map[string]string
}

func (Call) step() {}

// FileDrop writes the file body registered under Path in the definition's
// files mapping into the container. Declared with the !df tag.
type FileDrop struct {
	Path string
}

func (FileDrop) step() {}

// StepList decodes an action's YAML sequence into typed steps.
type StepList []Step

func (l *StepList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: action steps must be a sequence", node.Line)
	}
	steps := make(StepList, 0, len(node.Content))
	for _, item := range node.Content {
		step, err := decodeStep(item)
		if err != nil {
			return err
		}
		steps = append(steps, step)
	}
	*l = steps
	return nil
}

func decodeStep(node *yaml.Node) (Step, error) {
	switch node.Tag {
	case "!rpc":
		tokens, err := stepTokens(node)
		if err != nil {
			return nil, err
		}
		return parseCall(node.Line, tokens)
	case "!df":
		if node.Kind != yaml.ScalarNode || node.Value == "" {
			return nil, fmt.Errorf("line %d: !df expects a file path", node.Line)
		}
		return FileDrop{Path: node.Value}, nil
	}
	if node.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("line %d: unsupported step", node.Line)
	}
	return ShellLine(node.Value), nil
}

// stepTokens flattens a tagged node into its non-empty tokens, accepting
// both the scalar and the list form.
func stepTokens(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return strings.Fields(node.Value), nil
	case yaml.SequenceNode:
		tokens := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: %s tokens must be scalars", item.Line, node.Tag)
			}
			if item.Value == "" {
				continue
			}
			tokens = append(tokens, item.Value)
		}
		return tokens, nil
	default:
		return nil, fmt.Errorf("line %d: %s expects a scalar or a list", node.Line, node.Tag)
	}
}

func parseCall(line int, tokens []string) (Call, error) {
	if len(tokens) < 2 {
		return Call{}, fmt.Errorf("line %d: !rpc needs a target and an action", line)
	}
	call := Call{
		Target: tokens[0],
		Action: tokens[1],
		Params: make(map[string]string, len(tokens)-2),
	}
	for _, token := range tokens[2:] {
		key, value, ok := strings.Cut(token, "=")
		if !ok || key == "" {
			return Call{}, fmt.Errorf("line %d: parameter %q is not key=value", line, token)
		}
		call.Params[key] = value
	}
	return call, nil
}
