// Package domain describes the hosted business domains: their corpus
// location and the ordered table of action keywords, each bound to an
// external endpoint and a payload builder.
package domain

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/54b3r/taskagent-go/internal/action"
)

// Domain names.
const (
	HR          = "hr"
	Finance     = "finance"
	Procurement = "procurement"
)

// Route binds an action keyword to the action it triggers.
type Route struct {
	// Keyword is matched case-insensitively as a substring of the task.
	Keyword string

	// Action is dispatched when Keyword matches an actionable task.
	Action action.Action

	// EndpointEnv is the environment variable that configures the endpoint.
	EndpointEnv string
}

// Descriptor is the static configuration of one domain pipeline.
type Descriptor struct {
	// Name is the lowercase domain identifier used in routes and metrics.
	Name string

	// Title is the human-readable department name.
	Title string

	// CorpusPath is the reference corpus file. Empty selects the built-in
	// corpus.
	CorpusPath string

	// CorpusEnv is the environment variable that configures CorpusPath.
	CorpusEnv string

	// Routes are checked in order; the first matching keyword wins.
	Routes []Route
}

// Match returns the first action whose keyword appears in task.
func (d *Descriptor) Match(task string) (action.Action, bool) {
	lower := strings.ToLower(task)
	for _, r := range d.Routes {
		if strings.Contains(lower, strings.ToLower(r.Keyword)) {
			return r.Action, true
		}
	}
	return action.Action{}, false
}

// Problems lists configuration gaps for the domain, such as unset action
// endpoints. An empty result means every action can be dispatched.
func (d *Descriptor) Problems() []string {
	var out []string
	for _, r := range d.Routes {
		if r.Action.Endpoint == "" {
			out = append(out, fmt.Sprintf("%s: %s is not set; %s actions will return ERROR", d.Name, r.EndpointEnv, r.Action.Name))
		}
	}
	return out
}

// Names returns the hosted domain names in display order.
func Names() []string {
	return []string{HR, Finance, Procurement}
}

// FromEnv returns the descriptors for every hosted domain, with corpus paths
// and endpoints read from the environment.
func FromEnv() []*Descriptor {
	return []*Descriptor{hrDescriptor(), financeDescriptor(), procurementDescriptor()}
}

// Lookup returns the descriptor named name from ds.
func Lookup(ds []*Descriptor, name string) (*Descriptor, bool) {
	i := slices.IndexFunc(ds, func(d *Descriptor) bool { return d.Name == strings.ToLower(name) })
	if i < 0 {
		return nil, false
	}
	return ds[i], true
}

func route(keyword, name, env string, build action.Builder) Route {
	return Route{
		Keyword:     keyword,
		EndpointEnv: env,
		Action: action.Action{
			Name:     name,
			Endpoint: os.Getenv(env),
			Build:    build,
		},
	}
}

func hrDescriptor() *Descriptor {
	return &Descriptor{
		Name:       HR,
		Title:      "Human Resources",
		CorpusPath: os.Getenv("HR_CORPUS_PATH"),
		CorpusEnv:  "HR_CORPUS_PATH",
		Routes: []Route{
			route("leave", "leave_request", "HR_LEAVE_REQUEST_URL", LeaveRequestPayload),
			route("onboard", "employee_onboarding", "HR_ONBOARDING_URL", OnboardingPayload),
		},
	}
}

func financeDescriptor() *Descriptor {
	return &Descriptor{
		Name:       Finance,
		Title:      "Finance",
		CorpusPath: os.Getenv("FINANCE_CORPUS_PATH"),
		CorpusEnv:  "FINANCE_CORPUS_PATH",
		Routes: []Route{
			route("invoice", "invoice", "FINANCE_INVOICE_URL", InvoicePayload),
			route("budget", "budget_allocation", "FINANCE_BUDGET_URL", BudgetPayload),
			route("expense", "expense_claim", "FINANCE_EXPENSE_URL", ExpensePayload),
		},
	}
}

func procurementDescriptor() *Descriptor {
	return &Descriptor{
		Name:       Procurement,
		Title:      "Procurement",
		CorpusPath: os.Getenv("PROCUREMENT_CORPUS_PATH"),
		CorpusEnv:  "PROCUREMENT_CORPUS_PATH",
		Routes: []Route{
			route("order", "purchase_order", "PROCUREMENT_ORDER_URL", PurchaseOrderPayload),
			route("supplier", "supplier_onboarding", "PROCUREMENT_SUPPLIER_URL", SupplierPayload),
		},
	}
}
