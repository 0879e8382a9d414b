package email

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/weddify/binks/internal/model"
)

// BuildCredentialDeliveryBody builds the HTML body listing every delivered
// credential of an order, one table per item.
func BuildCredentialDeliveryBody(o *model.Order) string {
	var items strings.Builder
	for _, item := range o.Items {
		items.WriteString(fmt.Sprintf(
			`<h2 style="font-size: 16px; margin: 24px 0 8px;">%s &times; %d</h2>`,
			html.EscapeString(item.ProductTitle), item.Quantity))

		if len(item.StockItems) == 0 {
			items.WriteString(`<p style="color: #999;">Delivery pending. We will email you again shortly.</p>`)
			continue
		}

		items.WriteString(`<table style="width: 100%; border-collapse: collapse;">`)
		for i, stock := range item.StockItems {
			items.WriteString(fmt.Sprintf(
				`<tr><td colspan="2" style="padding: 8px; background: #f8f9fa; font-weight: 600;">Account %d</td></tr>`, i+1))
			for _, key := range sortedKeys(stock.Credentials) {
				items.WriteString(fmt.Sprintf(
					`<tr>
				<td style="padding: 8px; border-bottom: 1px solid #eee; width: 30%%;">%s</td>
				<td style="padding: 8px; border-bottom: 1px solid #eee; font-family: monospace;">%s</td>
			</tr>`,
					html.EscapeString(key),
					html.EscapeString(stock.Credentials[key]),
				))
			}
		}
		items.WriteString(`</table>`)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #1f2937; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Thank you for your purchase</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin-bottom: 20px;">
			<p style="margin: 0; font-size: 14px; color: #666;">Invoice</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>

		%s

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px; margin-top: 24px;">
			<span style="font-size: 14px; color: #666;">Total paid</span>
			<span style="font-size: 24px; font-weight: bold; margin-left: 10px;">Rp%s</span>
		</div>

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			Keep these credentials private. This email was sent automatically.
		</p>
	</div>
</body>
</html>`, html.EscapeString(o.ID), items.String(), FormatRupiah(o.Total))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatRupiah formats an amount with dot thousand separators.
func FormatRupiah(n int64) string {
	if n < 0 {
		return "-" + FormatRupiah(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	remainder := len(str) % 3
	if remainder > 0 {
		result.WriteString(str[:remainder])
		result.WriteString(".")
	}
	for i := remainder; i < len(str); i += 3 {
		result.WriteString(str[i : i+3])
		if i+3 < len(str) {
			result.WriteString(".")
		}
	}
	return result.String()
}
