// Package prompt renders prompt templates written in text/template syntax.
//
// Variables are referenced by map key, e.g. {{.task}}. Parsed templates are
// cached by the SHA-256 of their source so that a prompt rendered every round
// is parsed only once.
package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"text/template"
	"text/template/parse"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/m-mizutani/goerr/v2"
)

const DefaultCacheSize = 128

// ErrTagTemplate marks template parse and execution errors.
var ErrTagTemplate = goerr.NewTag("template")

// Renderer renders templates with variables. It is safe for concurrent use.
type Renderer struct {
	cacheSize int
	cache     *lru.Cache[string, *parsed]
}

type parsed struct {
	tmpl *template.Template
	// keys are the top level map keys referenced by the template.
	keys []string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithCacheSize sets the number of parsed templates kept in memory.
// Default is DefaultCacheSize.
func WithCacheSize(n int) Option {
	return func(r *Renderer) {
		r.cacheSize = n
	}
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(r)
	}
	if r.cacheSize <= 0 {
		r.cacheSize = DefaultCacheSize
	}

	// lru.New fails only for a non-positive size, which is excluded above.
	cache, err := lru.New[string, *parsed](r.cacheSize)
	if err != nil {
		panic(err)
	}
	r.cache = cache
	return r
}

var defaultRenderer = New()

// Default returns the process wide Renderer.
func Default() *Renderer {
	return defaultRenderer
}

// Render substitutes vars into tmpl. Missing keys render as an empty string.
// A template without any action is returned unchanged.
func (r *Renderer) Render(tmpl string, vars map[string]any) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	p, err := r.parse(tmpl)
	if err != nil {
		return "", err
	}

	data := make(map[string]any, len(vars)+len(p.keys))
	for k, v := range vars {
		data[k] = v
	}
	for _, k := range p.keys {
		if data[k] == nil {
			data[k] = ""
		}
	}

	var b strings.Builder
	if err := p.tmpl.Execute(&b, data); err != nil {
		return "", goerr.Wrap(err, "failed to execute prompt template", goerr.Tag(ErrTagTemplate))
	}
	return b.String(), nil
}

// Len returns the number of cached templates.
func (r *Renderer) Len() int {
	return r.cache.Len()
}

func (r *Renderer) parse(tmpl string) (*parsed, error) {
	sum := sha256.Sum256([]byte(tmpl))
	key := hex.EncodeToString(sum[:])

	if p, ok := r.cache.Get(key); ok {
		return p, nil
	}

	t, err := template.New(key[:12]).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse prompt template",
			goerr.V("template_hash", key),
			goerr.Tag(ErrTagTemplate),
		)
	}

	keys := map[string]struct{}{}
	collectKeys(t.Tree.Root, keys)
	p := &parsed{tmpl: t, keys: make([]string, 0, len(keys))}
	for k := range keys {
		p.keys = append(p.keys, k)
	}
	r.cache.Add(key, p)
	return p, nil
}

// collectKeys gathers the keys of single identifier field references such as
// {{.task}}.
func collectKeys(node parse.Node, keys map[string]struct{}) {
	switch n := node.(type) {
	case nil:
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			collectKeys(c, keys)
		}
	case *parse.ActionNode:
		collectKeys(n.Pipe, keys)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, c := range n.Cmds {
			collectKeys(c, keys)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			collectKeys(arg, keys)
		}
	case *parse.FieldNode:
		if len(n.Ident) == 1 {
			keys[n.Ident[0]] = struct{}{}
		}
	case *parse.ChainNode:
		collectKeys(n.Node, keys)
	case *parse.IfNode:
		collectBranch(&n.BranchNode, keys)
	case *parse.RangeNode:
		collectBranch(&n.BranchNode, keys)
	case *parse.WithNode:
		collectBranch(&n.BranchNode, keys)
	case *parse.TemplateNode:
		collectKeys(n.Pipe, keys)
	}
}

func collectBranch(n *parse.BranchNode, keys map[string]struct{}) {
	collectKeys(n.Pipe, keys)
	collectKeys(n.List, keys)
	collectKeys(n.ElseList, keys)
}
