package meta

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

const (
	descriptorSchema = "descriptor.json"
	rootSchema       = "root.json"
)

var (
	// ErrDescriptorInvalid reports descriptor bytes that are not a JSON object
	// matching the descriptor schema.
	ErrDescriptorInvalid = errors.New("meta: descriptor invalid")

	compiledOnce    sync.Once
	compiledSchemas map[string]*jsonschema.Schema
	compileErr      error
)

// Issue is a single schema violation.
type Issue struct {
	Location string
	Message  string
}

// SchemaError lists the violations found in one descriptor.
type SchemaError struct {
	Schema string
	Issues []Issue
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		location := issue.Location
		if location == "" {
			location = "#"
		} else if !strings.HasPrefix(location, "#") {
			location = "#" + location
		}
		parts = append(parts, fmt.Sprintf("%s: %s", location, issue.Message))
	}
	return fmt.Sprintf("%s: %s", e.Schema, strings.Join(parts, "; "))
}

func (e *SchemaError) Unwrap() error {
	return ErrDescriptorInvalid
}

func schemas() (map[string]*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiled := make(map[string]*jsonschema.Schema, 2)
		for _, name := range []string{descriptorSchema, rootSchema} {
			raw, err := schemaFiles.ReadFile("schemas/" + name)
			if err != nil {
				compileErr = err
				return
			}
			if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
				compileErr = err
				return
			}
		}
		for _, name := range []string{descriptorSchema, rootSchema} {
			schema, err := compiler.Compile(name)
			if err != nil {
				compileErr = err
				return
			}
			compiled[name] = schema
		}
		compiledSchemas = compiled
	})
	return compiledSchemas, compileErr
}

// validate decodes data and checks it against the named schema.
func validate(name string, data []byte) error {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrDescriptorInvalid, err)
	}
	compiled, err := schemas()
	if err != nil {
		return fmt.Errorf("meta: compile schemas: %w", err)
	}
	if err := compiled[name].Validate(payload); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return &SchemaError{Schema: name, Issues: collectIssues(validationErr)}
		}
		return fmt.Errorf("%w: %v", ErrDescriptorInvalid, err)
	}
	return nil
}

func collectIssues(root *jsonschema.ValidationError) []Issue {
	issues := []Issue{}
	stack := []*jsonschema.ValidationError{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}
		if len(node.Causes) == 0 {
			issues = append(issues, Issue{
				Location: strings.TrimSpace(node.InstanceLocation),
				Message:  strings.TrimSpace(node.Message),
			})
			continue
		}
		for i := len(node.Causes) - 1; i >= 0; i-- {
			stack = append(stack, node.Causes[i])
		}
	}
	return issues
}
