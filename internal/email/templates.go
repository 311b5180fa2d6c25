package email

import (
	"fmt"
	"strings"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
}

// BuildOrderConfirmationBody builds the HTML body for the order
// confirmation email. Amounts are minor currency units.
func BuildOrderConfirmationBody(orderNumber string, total int64, items []OrderItem) string {
	var itemsHTML strings.Builder
	for _, item := range items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		itemsHTML.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			name,
			item.Quantity,
			formatAmount(item.UnitPrice),
			formatAmount(item.UnitPrice*int64(item.Quantity)),
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 24px;">Thank you for your order</h1>

	<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
		<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
		<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
	</div>

	<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
		<thead>
			<tr style="background: #f8f9fa;">
				<th style="padding: 12px; text-align: left;">Item</th>
				<th style="padding: 12px; text-align: center;">Qty</th>
				<th style="padding: 12px; text-align: right;">Unit price</th>
				<th style="padding: 12px; text-align: right;">Subtotal</th>
			</tr>
		</thead>
		<tbody>
			%s
		</tbody>
	</table>

	<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
		<span style="font-size: 14px; color: #666;">Total</span>
		<span style="font-size: 24px; font-weight: bold; margin-left: 10px;">%s</span>
	</div>

	<p style="margin-top: 30px;">Your order is awaiting payment. Open the app and scan the payment code within 15 minutes to complete the purchase.</p>

	<p style="font-size: 12px; color: #999;">This email was sent automatically. Please contact support if you have any questions.</p>
</body>
</html>`, orderNumber, itemsHTML.String(), formatAmount(total))
}

// BuildPaymentReceiptBody builds the HTML body for the payment receipt email.
func BuildPaymentReceiptBody(orderNumber, transactionID string, amount int64) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 24px;">Payment confirmed</h1>

	<p>We received your payment of <strong>%s</strong> for order <strong>%s</strong>.</p>
	<p style="font-size: 14px; color: #666;">Transaction reference: <span style="font-family: monospace;">%s</span></p>

	<p>We are now preparing your order for shipment.</p>

	<p style="font-size: 12px; color: #999;">This email was sent automatically. Please contact support if you have any questions.</p>
</body>
</html>`, formatAmount(amount), orderNumber, transactionID)
}

// BuildShippingNoticeBody builds the HTML body for the shipping notice email.
func BuildShippingNoticeBody(orderNumber string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 24px;">Your order has shipped</h1>

	<p>Order <strong>%s</strong> has left our warehouse and is on its way to you.</p>

	<p style="font-size: 12px; color: #999;">This email was sent automatically. Please contact support if you have any questions.</p>
</body>
</html>`, orderNumber)
}

// formatAmount renders a minor-unit amount with comma separators.
func formatAmount(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	remainder := len(str) % 3
	if remainder > 0 {
		result.WriteString(str[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < len(str); i += 3 {
		result.WriteString(str[i : i+3])
		if i+3 < len(str) {
			result.WriteString(",")
		}
	}
	return result.String()
}
