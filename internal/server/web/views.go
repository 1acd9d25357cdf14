package web

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/gofiber/fiber/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageData is the model passed to every template.
type pageData struct {
	Title     string
	Error     string
	Message   string
	Email     string
	Token     string
	LoginLink bool
	User      map[string]any
}

type views struct {
	t *template.Template
}

func newViews() (*views, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &views{t: t}, nil
}

// render executes the named page into a buffer first, so a template error
// never leaves a half written response.
func (v *views) render(c *fiber.Ctx, status int, name string, data pageData) error {
	var buf bytes.Buffer
	if err := v.t.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}
