package views

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
)

//go:embed layouts partials accounts emails errors
var files embed.FS

// Extension is the template file suffix
const Extension = ".html"

// FS returns the embedded templates
func FS() fs.FS {
	return files
}

// Options configure the view engine
type Options struct {
	// Dir overrides the embedded templates with files on disk, useful while developing
	Dir       string
	Debug     bool
	Functions map[string]any
}

// NewEngine builds the django engine used for pages and email bodies.
// Templates are addressed without extension, e.g. "accounts/login".
func NewEngine(opts Options) (*django.Engine, error) {
	var engine *django.Engine
	if opts.Dir != "" {
		engine = django.New(opts.Dir, Extension)
		engine.Reload(opts.Debug)
	} else {
		engine = django.NewFileSystem(http.FS(files), Extension)
	}

	engine.Debug(opts.Debug)
	if len(opts.Functions) > 0 {
		engine.AddFuncMap(opts.Functions)
	}

	if err := engine.Load(); err != nil {
		return nil, err
	}
	return engine, nil
}
