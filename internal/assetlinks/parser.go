package assetlinks

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrIllFormedStatement indicates a statement list that violates the grammar.
	ErrIllFormedStatement = errors.New("ill-formed asset links statement")
	// ErrTooManyIncludes indicates a statement list tree larger than MaxURIs.
	ErrTooManyIncludes = errors.New("too many asset links includes")
)

// MatchFunc is invoked for every statement a registered matcher selects.
// Returning an error aborts parsing with ErrIllFormedStatement.
type MatchFunc func(m StatementMatcher, s Statement) error

type registration struct {
	matcher StatementMatcher
	onMatch MatchFunc
}

// Parser walks a statement list tree one document at a time. Callers feed it
// the document for each URL it asks for until it reports completion. A Parser
// is single-use and not safe for concurrent use.
type Parser struct {
	uris     []*url.URL
	loading  int
	secure   bool
	failed   bool
	matchers []registration
}

// NewParser returns an unstarted parser.
func NewParser() *Parser {
	return &Parser{loading: -1}
}

// AddMatcher registers fn to run for statements selected by m. Matchers must
// be registered before Start.
func (p *Parser) AddMatcher(m StatementMatcher, fn MatchFunc) {
	p.matchers = append(p.matchers, registration{matcher: m, onMatch: fn})
}

// URIs returns every document URL discovered so far, source first.
func (p *Parser) URIs() []*url.URL {
	return append([]*url.URL(nil), p.uris...)
}

// Complete reports whether the whole tree has been parsed without error.
func (p *Parser) Complete() bool {
	return !p.failed && p.loading >= 0 && p.loading == len(p.uris)
}

// Start begins parsing at source and returns the first document to load.
func (p *Parser) Start(source *url.URL) (*url.URL, error) {
	if source == nil || !source.IsAbs() {
		return nil, errors.New("asset links source must be an absolute URL")
	}
	if p.loading != -1 {
		return nil, errors.New("asset links parser already started")
	}
	p.loading = 0
	p.uris = append(p.uris, source)
	p.secure = !strings.EqualFold(source.Scheme, "http")
	return source, nil
}

// DocumentLoaded consumes the document fetched from docURL and returns the
// next URL to load, or nil once the tree is complete. After any error the
// parser is unusable.
func (p *Parser) DocumentLoaded(docURL *url.URL, doc []byte) (*url.URL, error) {
	if p.failed {
		return nil, errors.New("asset links parser is in the error state")
	}
	if p.loading < 0 || p.loading >= len(p.uris) {
		return nil, errors.New("asset links parser is not expecting a document")
	}
	if expected := p.uris[p.loading]; docURL.String() != expected.String() {
		p.failed = true
		return nil, fmt.Errorf("unexpected document %s, expected %s", docURL, expected)
	}
	if err := p.parseDocument(docURL, doc); err != nil {
		p.failed = true
		return nil, err
	}
	p.loading++
	if p.Complete() {
		return nil, nil
	}
	return p.uris[p.loading], nil
}

func (p *Parser) parseDocument(docURL *url.URL, doc []byte) error {
	var statements []map[string]json.RawMessage
	if err := json.Unmarshal(doc, &statements); err != nil {
		return fmt.Errorf("%w: %v", ErrIllFormedStatement, err)
	}
	if statements == nil {
		return fmt.Errorf("%w: document is not a statement list", ErrIllFormedStatement)
	}
	for i, statement := range statements {
		if statement == nil {
			return fmt.Errorf("%w: statement %d is not an object", ErrIllFormedStatement, i)
		}
		var err error
		switch {
		case has(statement, KeyInclude):
			err = p.parseInclude(docURL, statement)
		case has(statement, KeyRelation):
			err = p.parseRelation(statement)
		default:
			err = fmt.Errorf("%w: statement %d is neither an include nor a relation", ErrIllFormedStatement, i)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseInclude(docURL *url.URL, statement map[string]json.RawMessage) error {
	var ref string
	if err := json.Unmarshal(statement[KeyInclude], &ref); err != nil {
		return fmt.Errorf("%w: include must be a string", ErrIllFormedStatement)
	}
	if len(statement) > 1 {
		return fmt.Errorf("%w: include statement has extra keys", ErrIllFormedStatement)
	}
	include, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("%w: include %q: %v", ErrIllFormedStatement, ref, err)
	}
	if !include.IsAbs() {
		if docURL.Opaque != "" {
			return fmt.Errorf("%w: relative include %q in non-hierarchical document %s", ErrIllFormedStatement, ref, docURL)
		}
		include = docURL.ResolveReference(include)
	}
	if p.secure && !strings.EqualFold(include.Scheme, "https") {
		return fmt.Errorf("%w: include %s must use https", ErrIllFormedStatement, include)
	}

	p.uris = append(p.uris, include)
	if len(p.uris) > MaxURIs {
		return ErrTooManyIncludes
	}
	return nil
}

func (p *Parser) parseRelation(statement map[string]json.RawMessage) error {
	var relations []string
	if err := json.Unmarshal(statement[KeyRelation], &relations); err != nil {
		return fmt.Errorf("%w: relation must be an array of strings", ErrIllFormedStatement)
	}
	if len(relations) == 0 {
		return fmt.Errorf("%w: relation must not be empty", ErrIllFormedStatement)
	}
	var target map[string]json.RawMessage
	if err := json.Unmarshal(statement[KeyTarget], &target); err != nil || target == nil {
		return fmt.Errorf("%w: target must be an object", ErrIllFormedStatement)
	}
	if !has(target, KeyNamespace) {
		return fmt.Errorf("%w: target must contain namespace", ErrIllFormedStatement)
	}
	if len(statement) > 2 {
		return fmt.Errorf("%w: relation statement has extra keys", ErrIllFormedStatement)
	}

	s := Statement{Relations: relations, Target: target}
	for _, reg := range p.matchers {
		if !reg.matcher.Match(s) {
			continue
		}
		if err := reg.onMatch(reg.matcher, s); err != nil {
			return fmt.Errorf("%w: matcher failed: %v", ErrIllFormedStatement, err)
		}
	}
	return nil
}

func has(obj map[string]json.RawMessage, key string) bool {
	_, ok := obj[key]
	return ok
}

// WellKnownURI returns the Asset Links document location for an absolute
// http or https URL, e.g. https://example.com/pay maps to
// https://example.com/.well-known/assetlinks.json.
func WellKnownURI(base *url.URL) (*url.URL, error) {
	if base == nil || !base.IsAbs() || base.Opaque != "" {
		return nil, errors.New("asset links base must be an absolute hierarchical URL")
	}
	scheme := strings.ToLower(base.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("asset links base must be http or https, got %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, errors.New("asset links base has no authority")
	}
	return &url.URL{
		Scheme: base.Scheme,
		User:   base.User,
		Host:   base.Host,
		Path:   wellKnownAssetLinksURI,
	}, nil
}
