package tool

import (
	"github.com/cloudwego/eino/schema"
)

// Order tools. The set is closed; the order handler decodes each call into a
// typed action.
const (
	ToolAddItem        = "add_item"
	ToolRemoveItem     = "remove_item"
	ToolViewCart       = "view_cart"
	ToolSetCustomer    = "set_customer"
	ToolShowSummary    = "show_summary"
	ToolConfirm        = "confirm"
	ToolCancel         = "cancel"
	ToolTransferSearch = "transfer_search"
)

func OrderTools() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolAddItem,
			Desc: "Validate a product and put it in the cart. Adding a product already in the cart replaces its quantity.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"product_id": {Type: schema.String, Desc: "Catalog product ID, for example TECH-007", Required: true},
				"quantity":   {Type: schema.Integer, Desc: "Quantity wanted, at least 1", Required: true},
			}),
		},
		{
			Name: ToolRemoveItem,
			Desc: "Remove a product from the cart.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"product_id": {Type: schema.String, Desc: "Catalog product ID", Required: true},
			}),
		},
		{
			Name: ToolViewCart,
			Desc: "Show the cart lines and total.",
		},
		{
			Name: ToolSetCustomer,
			Desc: "Record one customer detail given by the customer.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"field": {
					Type:     schema.String,
					Desc:     "Which detail",
					Enum:     []string{"name", "email", "shipping_address"},
					Required: true,
				},
				"value": {Type: schema.String, Desc: "The value exactly as given", Required: true},
			}),
		},
		{
			Name: ToolShowSummary,
			Desc: "Display the order summary for review. Required before an order can be confirmed.",
		},
		{
			Name: ToolConfirm,
			Desc: "Place the order. Only when a summary was shown and the customer explicitly agreed.",
		},
		{
			Name: ToolCancel,
			Desc: "Abandon the current purchase.",
		},
		{
			Name: ToolTransferSearch,
			Desc: "Hand the conversation to product search.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"reason": {Type: schema.String, Desc: "Why search is needed"},
			}),
		},
	}
}
