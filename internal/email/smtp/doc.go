// Package smtp implementa un cliente SMTP mínimo que recorre el handshake
// completo a mano: greeting, EHLO, STARTTLS, EHLO sobre TLS, AUTH LOGIN,
// MAIL FROM, RCPT TO, DATA y QUIT.
//
// Cada paso es un valor de Step; los errores se devuelven como *StepError con
// el paso en el que fallaron. Antes de cada paso se re-arma un deadline de
// inactividad (30s por defecto) sobre la conexión, acotado además por el
// deadline del context del caller.
//
// El cuerpo MIME se arma con go-mail y se transmite con dot-stuffing vía
// net/textproto.
package smtp
