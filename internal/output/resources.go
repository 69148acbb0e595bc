package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/panelops/panelctl/internal/api"
	"github.com/panelops/panelctl/internal/cache"
	"github.com/panelops/panelctl/internal/session"
	"github.com/panelops/panelctl/internal/store"
)

func pageFooter(meta api.PageMeta, shown int) string {
	if meta.LastPage <= 0 {
		return fmt.Sprintf("%d shown", shown)
	}
	return fmt.Sprintf("page %d of %d, %d total", meta.CurrentPage, meta.LastPage, meta.Total)
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

// ProvidersView renders a provider listing.
func ProvidersView(page *api.Page[api.Provider]) *View {
	v := &View{Data: page, Title: "Providers", Header: []string{"ID", "Name", "Balance", "Status"}}
	for _, p := range page.Items {
		v.Rows = append(v.Rows, []string{id(p.ID), p.Name, money(p.Balance, p.Currency), p.Status})
	}
	v.Footer = pageFooter(page.Meta, len(page.Items))
	return v
}

// CategoriesView renders a category listing.
func CategoriesView(page *api.Page[api.Category]) *View {
	v := &View{Data: page, Title: "Categories", Header: []string{"ID", "Name", "Sort", "Status"}}
	for _, c := range page.Items {
		v.Rows = append(v.Rows, []string{id(c.ID), c.Name, strconv.Itoa(c.Sort), c.Status})
	}
	v.Footer = pageFooter(page.Meta, len(page.Items))
	return v
}

// ServicesView renders a service listing.
func ServicesView(page *api.Page[api.Service]) *View {
	v := &View{Data: page, Title: "Services", Header: []string{"ID", "Name", "Category", "Provider", "Rate", "Min", "Max", "Status"}}
	for _, s := range page.Items {
		v.Rows = append(v.Rows, []string{
			id(s.ID), s.Name, id(s.CategoryID), id(s.ProviderID), s.Rate,
			id(s.Min), id(s.Max), s.Status,
		})
	}
	v.Footer = pageFooter(page.Meta, len(page.Items))
	return v
}

// TicketsView renders a ticket listing.
func TicketsView(page *api.Page[api.Ticket]) *View {
	v := &View{Data: page, Title: "Tickets", Header: []string{"ID", "Subject", "User", "Status", "Updated"}}
	for _, t := range page.Items {
		v.Rows = append(v.Rows, []string{id(t.ID), t.Subject, t.UserEmail, t.Status, stamp(t.UpdatedAt)})
	}
	v.Footer = pageFooter(page.Meta, len(page.Items))
	return v
}

// TicketView renders one ticket thread.
func TicketView(ticket *api.Ticket) *View {
	v := &View{
		Data:   ticket,
		Title:  fmt.Sprintf("#%d %s [%s]", ticket.ID, ticket.Subject, ticket.Status),
		Header: []string{"When", "Author", "Message"},
	}
	for _, m := range ticket.Messages {
		author := m.Author
		if m.Staff {
			author += " (staff)"
		}
		v.Rows = append(v.Rows, []string{stamp(m.CreatedAt), author, m.Body})
	}
	return v
}

// UsersView renders a user listing.
func UsersView(page *api.Page[api.User]) *View {
	v := &View{Data: page, Title: "Users", Header: []string{"ID", "Email", "Name", "Role", "Balance", "Status"}}
	for _, u := range page.Items {
		v.Rows = append(v.Rows, []string{id(u.ID), u.Email, u.Name, u.Role, u.Balance, u.Status})
	}
	v.Footer = pageFooter(page.Meta, len(page.Items))
	return v
}

// PaymentsView renders a payment listing.
func PaymentsView(page *api.Page[api.Payment]) *View {
	v := &View{Data: page, Title: "Payments", Header: []string{"ID", "User", "Amount", "Method", "Status", "Created"}}
	for _, p := range page.Items {
		v.Rows = append(v.Rows, []string{id(p.ID), id(p.UserID), p.Amount, p.Method, p.Status, stamp(p.CreatedAt)})
	}
	v.Footer = pageFooter(page.Meta, len(page.Items))
	return v
}

// PaymentView renders a single payment, e.g. a created top-up.
func PaymentView(p *api.Payment) *View {
	return &View{
		Data:   p,
		Title:  "Payment",
		Header: []string{"ID", "User", "Amount", "Method", "Status", "Note"},
		Rows:   [][]string{{id(p.ID), id(p.UserID), p.Amount, p.Method, p.Status, p.Note}},
	}
}

// UserView renders the authenticated user.
func UserView(u *api.User, endpoint string) *View {
	return &View{
		Data:   u,
		Title:  endpoint,
		Header: []string{"ID", "Email", "Name", "Role"},
		Rows:   [][]string{{id(u.ID), u.Email, u.Name, u.Role}},
	}
}

// BalancesView renders provider balance snapshots from a sync.
func BalancesView(snaps []store.BalanceSnapshot) *View {
	v := &View{Data: snaps, Title: "Provider balances", Header: []string{"Provider", "Name", "Balance", "Synced"}}
	for _, s := range snaps {
		v.Rows = append(v.Rows, []string{id(s.ProviderID), s.ProviderName, money(s.Balance, s.Currency), stamp(s.SyncedAt)})
	}
	v.Footer = fmt.Sprintf("%d providers", len(snaps))
	return v
}

func money(amount, currency string) string {
	if currency == "" {
		return amount
	}
	return amount + " " + currency
}

// SessionView renders the saved session without its tokens.
func SessionView(s session.State, activeLocale string) *View {
	expires := "unknown"
	if s.ExpiresAt != nil {
		expires = stamp(*s.ExpiresAt)
	}
	return &View{
		Data:   s,
		Title:  "Session",
		Header: []string{"Endpoint", "Email", "Authenticated", "Refreshable", "Expires", "Locale"},
		Rows: [][]string{{
			s.Endpoint, s.Email, strconv.FormatBool(s.Authenticated), strconv.FormatBool(s.HasRefresh), expires, activeLocale,
		}},
	}
}

// LocaleView renders the active locale and the supported set.
func LocaleView(active string, supported []string) *View {
	all := "any"
	if len(supported) > 0 {
		all = strings.Join(supported, ", ")
	}
	return &View{
		Data:   map[string]any{"locale": active, "supported": supported},
		Header: []string{"Locale", "Supported"},
		Rows:   [][]string{{active, all}},
	}
}

// CacheView renders catalog cache usage.
func CacheView(path string, u cache.Usage) *View {
	return &View{
		Data:   map[string]any{"path": path, "usage": u},
		Title:  "Catalog cache",
		Header: []string{"Path", "Live", "Expired", "Bytes"},
		Rows:   [][]string{{path, strconv.Itoa(u.Live), strconv.Itoa(u.Expired), strconv.FormatInt(u.Bytes, 10)}},
	}
}
