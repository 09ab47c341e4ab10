package search

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

const noProductsMessage = "I couldn't find any products matching that. Could you rephrase or tell me a bit more about what you're looking for?"

func renderProducts(products []contractx.Product) string {
	var b strings.Builder
	b.WriteString("Here are the products I found:\n")
	for i, p := range products {
		fmt.Fprintf(&b, "%d. %s (ID: %s) - $%.2f, %s, %s\n",
			i+1, p.Name, p.ID, p.Price, p.Category, stockLabel(p.StockStatus))
	}
	b.WriteString("Let me know if you'd like more details or want to order one of them.")
	return b.String()
}

func stockLabel(s contractx.StockStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}
