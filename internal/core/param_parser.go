package core

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Params holds named query parameters referenced as {name} in SQL text.
type Params map[string]any

// PlaceholderFunc renders the n-th (1-based) positional placeholder for a dialect.
type PlaceholderFunc func(n int) string

// QuestionMark is the placeholder style of sqlite and mysql.
func QuestionMark(int) string { return "?" }

// SQLParser handles parsing of named parameters {var} to positional parameters
type SQLParser struct {
	regex       *regexp.Regexp
	placeholder PlaceholderFunc

	mu    sync.RWMutex
	cache map[string]*ParseResult
}

func NewSQLParser(placeholder PlaceholderFunc) *SQLParser {
	if placeholder == nil {
		placeholder = QuestionMark
	}
	// Matches {varname} where varname is alphanumeric
	return &SQLParser{
		regex:       regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`),
		placeholder: placeholder,
		cache:       make(map[string]*ParseResult),
	}
}

// ParseResult contains the transformed SQL and the list of parameter names in order
type ParseResult struct {
	SQL        string
	ParamNames []string
}

func (p *SQLParser) Parse(sqlText string) *ParseResult {
	p.mu.RLock()
	cached, ok := p.cache[sqlText]
	p.mu.RUnlock()
	if ok {
		return cached
	}

	paramNames := []string{}
	transformedSQL := p.regex.ReplaceAllStringFunc(sqlText, func(match string) string {
		paramNames = append(paramNames, match[1:len(match)-1])
		return p.placeholder(len(paramNames))
	})

	result := &ParseResult{SQL: transformedSQL, ParamNames: paramNames}
	p.mu.Lock()
	p.cache[sqlText] = result
	p.mu.Unlock()
	return result
}

// MapValues takes the list of param names and a map of values, returning the slice of values in order
func (p *SQLParser) MapValues(paramNames []string, values Params) ([]any, error) {
	result := make([]any, len(paramNames))
	missing := []string{}

	for i, name := range paramNames {
		val, ok := values[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		result[i] = val
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing parameters: %s", strings.Join(missing, ", "))
	}

	return result, nil
}

// Bind parses sqlText and orders values for it in one step.
func (p *SQLParser) Bind(sqlText string, values Params) (string, []any, error) {
	parsed := p.Parse(sqlText)
	args, err := p.MapValues(parsed.ParamNames, values)
	if err != nil {
		return "", nil, err
	}
	return parsed.SQL, args, nil
}
