package email

import (
	"bytes"
	"errors"
	"fmt"
	htemplate "html/template"
	"os"
	"path/filepath"
	ttemplate "text/template"

	"github.com/dropDatabas3/learnhabit/internal/observability/logger"
)

// DefaultAppName aparece en el subject y en el cuerpo.
const DefaultAppName = "Learning Habit Tracker"

// Archivos que pueden sobreescribir los templates por defecto en email.templates_dir.
const (
	pinHTMLFile = "verify_pin.html"
	pinTextFile = "verify_pin.txt"
)

const defaultPINHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #f4f4f7; color: #333; margin: 0; padding: 0; }
.container { max-width: 560px; margin: 0 auto; background-color: #ffffff; border-radius: 12px; overflow: hidden; }
.header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 32px; text-align: center; color: #ffffff; }
.content { padding: 32px; line-height: 1.6; }
.pin { font-family: 'Courier New', monospace; font-size: 36px; font-weight: 700; letter-spacing: 10px; text-align: center; background: #f8f9ff; border: 2px dashed #667eea; border-radius: 8px; padding: 18px; margin: 24px 0; color: #333; }
.footer { padding: 20px 32px; font-size: 12px; color: #8b8b9a; text-align: center; }
</style>
</head>
<body>
<div class="container">
  <div class="header"><h1>{{.AppName}}</h1></div>
  <div class="content">
    <p>Hi{{if .FirstName}} {{.FirstName}}{{end}},</p>
    <p>Use this code to verify your email address:</p>
    <div class="pin">{{.PIN}}</div>
    <p>The code expires in {{.ExpiresInMinutes}} minutes. If you did not request it, you can ignore this email.</p>
  </div>
  <div class="footer">{{.AppName}}</div>
</div>
</body>
</html>
`

const defaultPINText = `Hi{{if .FirstName}} {{.FirstName}}{{end}},

Use this code to verify your email address for {{.AppName}}:

VERIFICATION CODE: {{.PIN}}

The code expires in {{.ExpiresInMinutes}} minutes. If you did not request it, you can ignore this email.
`

// PINVars son las variables del template de verificación.
type PINVars struct {
	AppName          string
	FirstName        string
	PIN              string
	ExpiresInMinutes int
}

// Templates contiene los templates compilados del email de verificación.
type Templates struct {
	appName string
	html    *htemplate.Template
	text    *ttemplate.Template

	// builtin se usa si un template sobreescrito falla al renderizar.
	builtin *Templates
}

// NewTemplates compila los templates por defecto y, si dir no está vacío,
// los reemplaza por los archivos que existan ahí.
func NewTemplates(appName, dir string) (*Templates, error) {
	if appName == "" {
		appName = DefaultAppName
	}
	builtin, err := compile(appName, defaultPINHTML, defaultPINText)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return builtin, nil
	}

	htmlSrc, textSrc := defaultPINHTML, defaultPINText
	if b, err := os.ReadFile(filepath.Join(dir, pinHTMLFile)); err == nil {
		htmlSrc = string(b)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", pinHTMLFile, err)
	}
	if b, err := os.ReadFile(filepath.Join(dir, pinTextFile)); err == nil {
		textSrc = string(b)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", pinTextFile, err)
	}

	if htmlSrc == defaultPINHTML && textSrc == defaultPINText {
		return builtin, nil
	}
	t, err := compile(appName, htmlSrc, textSrc)
	if err != nil {
		return nil, err
	}
	t.builtin = builtin
	return t, nil
}

func compile(appName, htmlSrc, textSrc string) (*Templates, error) {
	h, err := htemplate.New("verify_pin_html").Parse(htmlSrc)
	if err != nil {
		return nil, fmt.Errorf("parse verify pin HTML template: %w", err)
	}
	t, err := ttemplate.New("verify_pin_text").Parse(textSrc)
	if err != nil {
		return nil, fmt.Errorf("parse verify pin text template: %w", err)
	}
	return &Templates{appName: appName, html: h, text: t}, nil
}

// Subject del email de verificación.
func (t *Templates) Subject() string {
	return "Verify your email - " + t.appName
}

// RenderPIN arma el mensaje completo para to. Si un template de
// email.templates_dir falla, el PIN sale igual con los templates por defecto.
func (t *Templates) RenderPIN(to string, vars PINVars) (Message, error) {
	m, err := t.render(to, vars)
	if err != nil && t.builtin != nil {
		logger.L().Warn("custom email template failed; using built-in template",
			logger.Component("email.templates"),
			logger.Err(err),
		)
		return t.builtin.render(to, vars)
	}
	return m, err
}

func (t *Templates) render(to string, vars PINVars) (Message, error) {
	if vars.AppName == "" {
		vars.AppName = t.appName
	}
	var hb, tb bytes.Buffer
	if err := t.html.Execute(&hb, vars); err != nil {
		return Message{}, fmt.Errorf("render verify pin HTML: %w", err)
	}
	if err := t.text.Execute(&tb, vars); err != nil {
		return Message{}, fmt.Errorf("render verify pin text: %w", err)
	}
	return Message{
		To:      to,
		Subject: t.Subject(),
		HTML:    hb.String(),
		Text:    tb.String(),
		Code:    vars.PIN,
	}, nil
}
