package notify

import (
	"strings"
	"text/template"
	"time"

	"github.com/ariefcatur/go-shop-payments/internal/gateway"
	"github.com/shopspring/decimal"
)

const ConfirmationSubject = "Order Confirmation and Invoice"

// Confirmation carries everything the confirmation letter shows.
type Confirmation struct {
	OrderID      string
	SessionID    string
	To           string
	Name         string
	TotalCents   int64
	Currency     string
	DeliveryDate time.Time
	Items        []ConfirmationItem
	Shipping     gateway.Address
	InvoiceRef   string
}

type ConfirmationItem struct {
	Name string
	Qty  int
}

var confirmationTmpl = template.Must(template.New("confirmation").Funcs(template.FuncMap{
	"money": func(cents int64) string { return decimal.New(cents, -2).StringFixed(2) },
	"upper": strings.ToUpper,
	"date":  func(t time.Time) string { return t.Format("Mon Jan 02 2006") },
}).Parse(`Dear {{if .Name}}{{.Name}}{{else}}customer{{end}},

Thank you for your purchase! Your order has been successfully placed.

Order Details:
Order ID: {{.OrderID}}
Total Price: {{money .TotalCents}} {{upper .Currency}}
Delivery Date: {{date .DeliveryDate}}

Products:
{{range .Items}}- {{.Name}} x {{.Qty}}
{{end}}
Shipping Address:
{{.Shipping.Line1}}
{{- with .Shipping.Line2}}
{{.}}{{end}}
{{.Shipping.City}}{{with .Shipping.State}}, {{.}}{{end}} {{.Shipping.PostalCode}}
{{.Shipping.Country}}
{{if .InvoiceRef}}
An invoice has been generated for your purchase. You can view it here: {{.InvoiceRef}}
{{end}}
Thank you for shopping with us!
`))

func RenderConfirmation(c Confirmation) (string, error) {
	var b strings.Builder
	if err := confirmationTmpl.Execute(&b, c); err != nil {
		return "", err
	}
	return b.String(), nil
}
