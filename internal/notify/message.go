// Package notify delivers submitted orders to the shop staff: an email relay,
// a NATS order-event stream, and a chat deep link the visitor opens themselves.
package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fairyhunter13/seatcover-storefront/internal/model"
)

// Summary is the plain-text order summary used for chat messages.
func Summary(o model.Order) string {
	phone := o.Phone
	if phone == "" {
		phone = "-"
	}
	return fmt.Sprintf(`Comanda huse auto
Brand: %s
Model: %s
Produs: %s - %s
Culoare: %s
Pret: %s
Telefon client: %s`, o.Brand, o.Model, o.ProductTitle, o.ProductCode, o.Color, o.Price, phone)
}

// EmailBody is the message body sent through the email relay.
func EmailBody(o model.Order) string {
	var b strings.Builder
	b.WriteString("COMANDĂ NOUĂ:\n\n")
	fmt.Fprintf(&b, "📱 Telefon: %s\n\n", o.Phone)
	b.WriteString("🚗 Mașină:\n")
	fmt.Fprintf(&b, "- Brand: %s\n", o.Brand)
	fmt.Fprintf(&b, "- Model: %s\n", o.Model)
	if o.Year != "" {
		fmt.Fprintf(&b, "- An: %s\n", o.Year)
	}
	b.WriteString("\n🛋️ Produs:\n")
	fmt.Fprintf(&b, "- Nume: %s\n", o.ProductTitle)
	fmt.Fprintf(&b, "- Cod: %s\n", o.ProductCode)
	fmt.Fprintf(&b, "- Culoare: %s\n", o.Color)
	fmt.Fprintf(&b, "- Preț: %s\n", o.Price)
	b.WriteString("\n---\nComandă trimisă de pe AutoHuse.md")
	return b.String()
}

// ChatLink returns the WhatsApp deep link that opens a chat with shopPhone
// pre-filled with the order summary.
func ChatLink(shopPhone string, o model.Order) string {
	// Spaces as %20; QueryEscape already turned every literal '+' into %2B.
	text := strings.ReplaceAll(url.QueryEscape(Summary(o)), "+", "%20")
	return "https://wa.me/" + url.PathEscape(shopPhone) + "?text=" + text
}
