package delivery

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

const smtpTimeout = 15 * time.Second

// EmailClient sends OTP emails through a plain SMTP relay.
type EmailClient struct {
	Addr string // host:port of the relay
	From string
}

// NewEmailClient returns a client for the given relay address and From header.
func NewEmailClient(addr, from string) *EmailClient {
	return &EmailClient{Addr: addr, From: from}
}

// Send delivers the OTP to the given email address. Does not log the OTP.
func (c *EmailClient) Send(ctx context.Context, email, code string) error {
	if c.Addr == "" {
		return fmt.Errorf("email: SMTP relay not configured")
	}
	deadline := time.Now().Add(smtpTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn, err := net.DialTimeout("tcp", c.Addr, time.Until(deadline))
	if err != nil {
		return fmt.Errorf("email: dial relay: %w", err)
	}
	_ = conn.SetDeadline(deadline)
	host, _, _ := net.SplitHostPort(c.Addr)
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("email: smtp handshake: %w", err)
	}
	defer client.Close()

	if err := client.Mail(c.From); err != nil {
		return err
	}
	if err := client.Rcpt(email); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Your verification code\r\n\r\nYour verification code is %s. It expires in a few minutes.\r\n", c.From, email, code)
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
