package mailer

import "embed"

const (
	FromName                  = "Storefront"
	maxRetries                = 3
	OrderConfirmationTemplate = "order_confirmation.tmpl"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	Send(templateFile, username, email string, data any) (int, error)
}
