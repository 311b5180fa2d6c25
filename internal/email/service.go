package email

import (
	"fmt"
	"net/smtp"
)

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
	}
}

// SendOrderConfirmation sends an order confirmation with payment instructions.
func (s *Service) SendOrderConfirmation(to, orderNumber string, total int64, items []OrderItem) error {
	subject := fmt.Sprintf("Order received (%s)", orderNumber)
	body := BuildOrderConfirmationBody(orderNumber, total, items)
	return s.send(to, subject, body)
}

// SendPaymentReceipt confirms that payment for an order has settled.
func (s *Service) SendPaymentReceipt(to, orderNumber, transactionID string, amount int64) error {
	subject := fmt.Sprintf("Payment confirmed (%s)", orderNumber)
	body := BuildPaymentReceiptBody(orderNumber, transactionID, amount)
	return s.send(to, subject, body)
}

// SendShippingNotice tells the customer their order is on the way.
func (s *Service) SendShippingNotice(to, orderNumber string) error {
	subject := fmt.Sprintf("Your order has shipped (%s)", orderNumber)
	body := BuildShippingNoticeBody(orderNumber)
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
