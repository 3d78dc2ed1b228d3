package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	mail "github.com/go-mail/mail"
)

const (
	DefaultPort    = 587
	DefaultTimeout = 30 * time.Second

	appPasswordLen = 16
)

// Config contiene la configuración del cliente.
type Config struct {
	Host        string
	Port        int    // default 587
	Username    string // cuenta SMTP
	AppPassword string // App Password de 16 caracteres (se ignoran espacios)
	From        string // default Username
	LocalName   string // nombre para EHLO, default "localhost"

	// Timeout de inactividad por paso, default 30s.
	Timeout time.Duration

	// TLSConfig opcional para el upgrade STARTTLS. ServerName se completa con Host.
	TLSConfig *tls.Config
}

// Mail es el mensaje a enviar.
type Mail struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Client envía mensajes recorriendo el handshake completo en cada Send.
type Client struct {
	cfg Config
}

// NewClient aplica defaults; no abre conexiones.
func NewClient(cfg Config) *Client {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.LocalName == "" {
		cfg.LocalName = "localhost"
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Client{cfg: cfg}
}

// Config retorna la configuración efectiva (con defaults).
func (c *Client) Config() Config { return c.cfg }

// NormalizeAppPassword quita los espacios con los que se suele copiar la App Password.
func NormalizeAppPassword(p string) string {
	return strings.Join(strings.Fields(p), "")
}

// ValidateCredentials se ejecuta antes de abrir la conexión.
func ValidateCredentials(cfg Config) error {
	if strings.TrimSpace(cfg.Host) == "" || strings.TrimSpace(cfg.Username) == "" {
		return ErrMissingCredentials
	}
	if len(NormalizeAppPassword(cfg.AppPassword)) != appPasswordLen {
		return ErrInvalidAppPassword
	}
	return nil
}

// Send entrega m. El error, si lo hay, es *StepError salvo en validaciones previas.
func (c *Client) Send(ctx context.Context, m Mail) error {
	if err := ValidateCredentials(c.cfg); err != nil {
		return err
	}
	body, err := c.compose(m)
	if err != nil {
		return fmt.Errorf("smtp: compose message: %w", err)
	}

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	d := net.Dialer{Timeout: c.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &StepError{Step: StepConnect, Err: err}
	}

	s := &session{ctx: ctx, cfg: c.cfg, conn: conn, tp: textproto.NewConn(conn)}
	defer s.close()

	// Cancelar el context corta la conexión y desbloquea la lectura en curso
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	return s.run(m.To, body)
}

func (c *Client) compose(m Mail) ([]byte, error) {
	msg := mail.NewMessage()
	msg.SetHeader("From", c.cfg.From)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)

	// multipart/alternative (txt + html)
	if m.Text != "" {
		msg.SetBody("text/plain", m.Text)
	}
	if m.HTML != "" {
		if m.Text == "" {
			msg.SetBody("text/html", m.HTML)
		} else {
			msg.AddAlternative("text/html", m.HTML)
		}
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// session es una conexión en curso. step avanza con cada paso.
type session struct {
	ctx  context.Context
	cfg  Config
	conn net.Conn
	tp   *textproto.Conn
	step Step
}

func (s *session) close() {
	if s.tp != nil {
		_ = s.tp.Close()
		return
	}
	_ = s.conn.Close()
}

// arm re-arma el deadline de inactividad para el paso actual.
func (s *session) arm(step Step) error {
	s.step = step
	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := s.ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return s.conn.SetDeadline(deadline)
}

func (s *session) fail(err error) error {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		err = errors.Join(ctxErr, err)
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		if tpErr.Code == 534 || tpErr.Code == 535 {
			return &StepError{Step: s.step, Code: tpErr.Code, Err: fmt.Errorf("%w: %s", ErrAuthFailed, tpErr.Msg)}
		}
		return &StepError{Step: s.step, Code: tpErr.Code, Err: tpErr}
	}
	return &StepError{Step: s.step, Err: err}
}

// cmd envía una línea y espera una respuesta con el código indicado
// (expect de 2 dígitos acepta cualquier 25x, por ejemplo).
func (s *session) cmd(step Step, expect int, format string, args ...any) (string, error) {
	if err := s.arm(step); err != nil {
		return "", s.fail(err)
	}
	if err := s.tp.PrintfLine(format, args...); err != nil {
		return "", s.fail(err)
	}
	_, msg, err := s.tp.ReadResponse(expect)
	if err != nil {
		return "", s.fail(err)
	}
	return msg, nil
}

func (s *session) run(to string, body []byte) error {
	// greeting
	if err := s.arm(StepGreeting); err != nil {
		return s.fail(err)
	}
	if _, _, err := s.tp.ReadResponse(220); err != nil {
		return s.fail(err)
	}

	caps, err := s.cmd(StepEHLO, 250, "EHLO %s", s.cfg.LocalName)
	if err != nil {
		return err
	}
	if !hasExtension(caps, "STARTTLS") {
		return s.fail(ErrStartTLSUnsupported)
	}
	if _, err := s.cmd(StepStartTLS, 220, "STARTTLS"); err != nil {
		return err
	}

	if err := s.upgradeTLS(); err != nil {
		return err
	}

	caps, err = s.cmd(StepEHLOTLS, 250, "EHLO %s", s.cfg.LocalName)
	if err != nil {
		return err
	}
	if !hasAuthLogin(caps) {
		return s.fail(ErrAuthLoginUnsupported)
	}

	if _, err := s.cmd(StepAuth, 334, "AUTH LOGIN"); err != nil {
		return err
	}
	user := base64.StdEncoding.EncodeToString([]byte(s.cfg.Username))
	if _, err := s.cmd(StepAuthUser, 334, "%s", user); err != nil {
		return err
	}
	pass := base64.StdEncoding.EncodeToString([]byte(NormalizeAppPassword(s.cfg.AppPassword)))
	if _, err := s.cmd(StepAuthPass, 235, "%s", pass); err != nil {
		return err
	}

	if _, err := s.cmd(StepMailFrom, 250, "MAIL FROM:<%s>", envelopeAddr(s.cfg.From)); err != nil {
		return err
	}
	// 250 o 251 (forwarded)
	if _, err := s.cmd(StepRcptTo, 25, "RCPT TO:<%s>", envelopeAddr(to)); err != nil {
		return err
	}
	if _, err := s.cmd(StepData, 354, "DATA"); err != nil {
		return err
	}

	if err := s.arm(StepBody); err != nil {
		return s.fail(err)
	}
	w := s.tp.DotWriter()
	if _, err := w.Write(body); err != nil {
		return s.fail(err)
	}
	if err := w.Close(); err != nil {
		return s.fail(err)
	}
	if _, _, err := s.tp.ReadResponse(250); err != nil {
		return s.fail(err)
	}

	// El mensaje ya fue aceptado: un QUIT fallido no invalida el envío
	_, _ = s.cmd(StepQuit, 221, "QUIT")
	return nil
}

func (s *session) upgradeTLS() error {
	if err := s.arm(StepTLSHandshake); err != nil {
		return s.fail(err)
	}
	tlsCfg := &tls.Config{}
	if s.cfg.TLSConfig != nil {
		tlsCfg = s.cfg.TLSConfig.Clone()
	}
	if tlsCfg.ServerName == "" {
		tlsCfg.ServerName = s.cfg.Host
	}
	if tlsCfg.MinVersion == 0 {
		tlsCfg.MinVersion = tls.VersionTLS12
	}

	tlsConn := tls.Client(s.conn, tlsCfg)
	if err := tlsConn.HandshakeContext(s.ctx); err != nil {
		return s.fail(err)
	}
	s.conn = tlsConn
	s.tp = textproto.NewConn(tlsConn)
	return nil
}

// hasExtension busca una extensión en la respuesta de EHLO (primera línea = saludo).
func hasExtension(ehlo, ext string) bool {
	lines := strings.Split(ehlo, "\n")
	for _, l := range lines[1:] {
		f := strings.Fields(strings.ToUpper(l))
		if len(f) > 0 && f[0] == ext {
			return true
		}
	}
	return false
}

func hasAuthLogin(ehlo string) bool {
	lines := strings.Split(ehlo, "\n")
	for _, l := range lines[1:] {
		f := strings.Fields(strings.ToUpper(strings.Replace(l, "=", " ", 1)))
		if len(f) == 0 || f[0] != "AUTH" {
			continue
		}
		for _, mech := range f[1:] {
			if mech == "LOGIN" {
				return true
			}
		}
	}
	return false
}

// envelopeAddr extrae la dirección de "Nombre <a@b>" para MAIL FROM / RCPT TO.
func envelopeAddr(s string) string {
	if i := strings.LastIndex(s, "<"); i >= 0 {
		if j := strings.LastIndex(s, ">"); j > i {
			return s[i+1 : j]
		}
	}
	return strings.TrimSpace(s)
}
