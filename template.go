package strand

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
)

// TemplateEngine renders named templates. The template renderer looks
// the engine up in the registry, so it is registered like any other
// service, e.g. with WithTemplateEngine.
type TemplateEngine interface {
	// Render executes templateName with data and returns the output.
	Render(ctx context.Context, templateName string, data any) ([]byte, error)
}

// GoTemplateEngine is a TemplateEngine backed by html/template.
//
//	engine := &strand.GoTemplateEngine{}
//	if err := engine.LoadFromGlob("templates/*.gohtml"); err != nil {
//		return err
//	}
//	srv := strand.InitServer(strand.WithTemplateEngine(engine))
type GoTemplateEngine struct {
	T *template.Template
}

func (g *GoTemplateEngine) Render(ctx context.Context, templateName string, data any) ([]byte, error) {
	bs := &bytes.Buffer{}
	err := g.T.ExecuteTemplate(bs, templateName, data)
	return bs.Bytes(), err
}

func (g *GoTemplateEngine) LoadFromGlob(pattern string) error {
	var err error
	g.T, err = template.ParseGlob(pattern)
	return err
}

func (g *GoTemplateEngine) LoadFromFiles(filenames ...string) error {
	var err error
	g.T, err = template.ParseFiles(filenames...)
	return err
}

func (g *GoTemplateEngine) LoadFromFS(fsys fs.FS, patterns ...string) error {
	var err error
	g.T, err = template.ParseFS(fsys, patterns...)
	return err
}
