package domain

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/54b3r/taskagent-go/internal/action"
)

// Default order values used when the task carries no quantity and product.
const (
	DefaultProduct  = "Laptop"
	DefaultQuantity = 10
)

var orderPattern = regexp.MustCompile(`(?i)order(?: for)? (\d+) (\w+)`)

// ParseOrderDetails extracts a product and quantity from phrases such as
// "order 12 printers" or "order for 3 desks". The product is singularised
// and title-cased. Tasks without a match yield (DefaultProduct,
// DefaultQuantity).
func ParseOrderDetails(task string) (string, int) {
	m := orderPattern.FindStringSubmatch(task)
	if m == nil {
		return DefaultProduct, DefaultQuantity
	}
	qty, err := strconv.Atoi(m[1])
	if err != nil {
		return DefaultProduct, DefaultQuantity
	}
	return titleCase(singular(m[2])), qty
}

func singular(word string) string {
	w := strings.ToLower(word)
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 3:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses"), strings.HasSuffix(w, "xes"),
		strings.HasSuffix(w, "ches"), strings.HasSuffix(w, "shes"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ss"):
		return w
	case strings.HasSuffix(w, "s") && len(w) > 1:
		return w[:len(w)-1]
	}
	return w
}

func titleCase(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

// PurchaseOrderPayload builds the procurement order body.
func PurchaseOrderPayload(task string) action.Payload {
	product, qty := ParseOrderDetails(task)
	return action.Payload{
		"product":     product,
		"quantity":    qty,
		"requester":   "procurement-agent",
		"description": task,
	}
}

// SupplierPayload builds the supplier onboarding body with placeholder
// supplier details.
func SupplierPayload(task string) action.Payload {
	return action.Payload{
		"supplier_name": "Global Parts Ltd",
		"contact_email": "vendor@example.com",
		"country":       "US",
		"description":   task,
	}
}

// LeaveRequestPayload builds the leave request body with placeholder
// employee and date values.
func LeaveRequestPayload(task string) action.Payload {
	return action.Payload{
		"employee_id":   "E12345",
		"employee_name": "John Doe",
		"leave_type":    "annual",
		"start_date":    "2024-07-01",
		"end_date":      "2024-07-05",
		"description":   task,
	}
}

// OnboardingPayload builds the employee onboarding body with placeholder
// hire details.
func OnboardingPayload(task string) action.Payload {
	return action.Payload{
		"employee_name": "Jane Smith",
		"position":      "Software Engineer",
		"department":    "Engineering",
		"start_date":    "2024-08-01",
		"description":   task,
	}
}

// InvoicePayload builds the invoice body with a placeholder invoice.
func InvoicePayload(task string) action.Payload {
	return action.Payload{
		"invoice_number": "INV-1001",
		"vendor":         "Acme Supplies",
		"amount":         1500.00,
		"currency":       "USD",
		"description":    task,
	}
}

// BudgetPayload builds the budget allocation body with placeholder values.
func BudgetPayload(task string) action.Payload {
	return action.Payload{
		"cost_center": "CC-100",
		"amount":      50000,
		"currency":    "USD",
		"fiscal_year": 2024,
		"description": task,
	}
}

// ExpensePayload builds the expense claim body with placeholder values.
func ExpensePayload(task string) action.Payload {
	return action.Payload{
		"employee_id": "E12345",
		"amount":      250.00,
		"currency":    "USD",
		"category":    "travel",
		"description": task,
	}
}
