package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// QuestionAnswer is one quiz item produced by the generator agent.
type QuestionAnswer struct {
	Question string `json:"question" jsonschema:"a factual question about the content"`
	Answer   string `json:"answer" jsonschema:"the concise expected answer"`
}

// QuestionSet is the structured output of the generator agent.
type QuestionSet struct {
	Questions []QuestionAnswer `json:"questions" jsonschema:"ordered question and answer pairs"`
}

// QuestionSetSchemaName is the registered name of the QuestionSet schema.
const QuestionSetSchemaName = "QuestionAnswers"

// QuestionSetSize is the number of questions the generator must produce.
const QuestionSetSize = 5

// QuestionSetSchema returns the output schema for the generator agent,
// inferred from the QuestionSet type. The questions array holds exactly
// QuestionSetSize items.
func QuestionSetSchema() (*OutputSchema, error) {
	s, err := jsonschema.For[QuestionSet](nil)
	if err != nil {
		return nil, fmt.Errorf("agent: infer question set schema: %w", err)
	}
	questions, ok := s.Properties["questions"]
	if !ok {
		return nil, fmt.Errorf("agent: question set schema has no questions property")
	}
	questions.MinItems = jsonschema.Ptr(QuestionSetSize)
	questions.MaxItems = jsonschema.Ptr(QuestionSetSize)
	return &OutputSchema{
		Name:        QuestionSetSchemaName,
		Description: "Collection of questions and answers",
		Schema:      s,
	}, nil
}

// ParseQuestionSet decodes a generator payload. Markdown code fences around
// the JSON document are tolerated.
func ParseQuestionSet(payload string) (*QuestionSet, error) {
	var qs QuestionSet
	if err := json.Unmarshal([]byte(CleanJSON(payload)), &qs); err != nil {
		return nil, fmt.Errorf("agent: parse question set: %w", err)
	}
	return &qs, nil
}

// CleanJSON strips markdown code fences and any prose surrounding the
// outermost JSON object.
func CleanJSON(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

// schemaValidator checks responses against a resolved output schema.
type schemaValidator struct {
	name     string
	resolved *jsonschema.Resolved
}

func newSchemaValidator(out *OutputSchema) (*schemaValidator, error) {
	resolved, err := out.Schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("agent: resolve schema %q: %w", out.Name, err)
	}
	return &schemaValidator{name: out.Name, resolved: resolved}, nil
}

// validate returns the cleaned document when text satisfies the schema.
func (v *schemaValidator) validate(agentName, text string) (string, error) {
	doc := CleanJSON(text)

	var instance any
	if err := json.Unmarshal([]byte(doc), &instance); err != nil {
		return "", &SchemaError{Agent: agentName, Schema: v.name, Err: fmt.Errorf("response is not JSON: %w", err)}
	}
	if err := v.resolved.Validate(instance); err != nil {
		return "", &SchemaError{Agent: agentName, Schema: v.name, Err: err}
	}
	return doc, nil
}
