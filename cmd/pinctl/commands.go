package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/learnhabit/internal/config"
	"github.com/dropDatabas3/learnhabit/internal/email"
	"github.com/dropDatabas3/learnhabit/internal/email/smtp"
)

const basePath = "/v1/email-verification"

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	cl := &client{
		BaseURL:   envOr("PINCTL_URL", "http://localhost:8080"),
		OutFormat: envOr("PINCTL_OUT", "text"),
		HTTP:      &http.Client{Timeout: 60 * time.Second},
	}

	root := &cobra.Command{
		Use:           "pinctl",
		Short:         "CLI para el servicio de verificación de email por PIN",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cl.Out = cmd.OutOrStdout()
		},
	}
	root.PersistentFlags().StringVar(&cl.BaseURL, "url", cl.BaseURL, "URL base del servicio (env PINCTL_URL)")
	root.PersistentFlags().StringVar(&cl.OutFormat, "out", cl.OutFormat, "Formato de salida: json|text")

	root.AddCommand(
		sendCmd(cl, "send", "Emite un PIN nuevo y lo envía"),
		sendCmd(cl, "resend", "Reenvía un PIN (respeta el cooldown)"),
		verifyCmd(cl),
		statusCmd(cl),
		ticketCmd(cl),
		smtpTestCmd(),
	)
	return root
}

func sendCmd(cl *client, name, short string) *cobra.Command {
	var addr, firstName string
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, body, err := cl.do(cmd.Context(), http.MethodPost, basePath+"/"+name, map[string]string{
				"email":      addr,
				"first_name": firstName,
			})
			if err != nil {
				return err
			}
			return cl.print(status, body)
		},
	}
	cmd.Flags().StringVar(&addr, "email", "", "Email destino")
	cmd.Flags().StringVar(&firstName, "first-name", "", "Nombre para el saludo (opcional)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func verifyCmd(cl *client) *cobra.Command {
	var addr, pin string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verifica un PIN",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, body, err := cl.do(cmd.Context(), http.MethodPost, basePath+"/verify", map[string]string{
				"email": addr,
				"pin":   pin,
			})
			if err != nil {
				return err
			}
			return cl.print(status, body)
		},
	}
	cmd.Flags().StringVar(&addr, "email", "", "Email a verificar")
	cmd.Flags().StringVar(&pin, "pin", "", "PIN de 6 dígitos")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("pin")
	return cmd
}

func statusCmd(cl *client) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Consulta si un email está verificado",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, body, err := cl.do(cmd.Context(), http.MethodGet, basePath+"/status?email="+url.QueryEscape(addr), nil)
			if err != nil {
				return err
			}
			return cl.print(status, body)
		},
	}
	cmd.Flags().StringVar(&addr, "email", "", "Email a consultar")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func ticketCmd(cl *client) *cobra.Command {
	return &cobra.Command{
		Use:   "ticket <token>",
		Short: "Valida un ticket de email verificado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do(cmd.Context(), http.MethodPost, basePath+"/ticket/verify", map[string]string{"ticket": args[0]})
			if err != nil {
				return err
			}
			return cl.print(status, body)
		},
	}
}

// smtpTestCmd manda un PIN de prueba por el cliente SMTP directamente,
// sin pasar por el servicio ni por los demás providers.
func smtpTestCmd() *cobra.Command {
	var configPath, to string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "smtp-test",
		Short: "Prueba la configuración SMTP enviando un email de prueba",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load(".env")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			sc := cfg.SMTPConfig()
			if sc.Host == "" {
				return errors.New("smtp.host is not configured")
			}
			if err := smtp.ValidateCredentials(sc); err != nil {
				reportSMTPError(cmd.ErrOrStderr(), err)
				return err
			}

			tpl, err := email.NewTemplates(cfg.Email.AppName, cfg.Email.TemplatesDir)
			if err != nil {
				return err
			}
			msg, err := tpl.RenderPIN(to, email.PINVars{PIN: "123456", ExpiresInMinutes: 10})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			c := smtp.NewClient(sc)
			err = c.Send(ctx, smtp.Mail{To: to, Subject: msg.Subject, HTML: msg.HTML, Text: msg.Text})
			if err != nil {
				reportSMTPError(cmd.ErrOrStderr(), err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent test email to %s via %s:%d\n", to, sc.Host, c.Config().Port)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "configs/config.yaml", "Path to YAML config")
	cmd.Flags().StringVar(&to, "to", "", "Destinatario de la prueba")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Tiempo máximo total")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func reportSMTPError(w io.Writer, err error) {
	var se *smtp.StepError
	if errors.As(err, &se) {
		fmt.Fprintf(w, "failed at step %s\n", se.Step)
	}
	if d := smtp.DiagnoseSMTP(err); d.Hint != "" {
		fmt.Fprintf(w, "hint: %s\n", d.Hint)
	}
}
