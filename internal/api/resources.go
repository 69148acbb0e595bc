package api

import (
	"context"
	"fmt"
	"net/http"
)

// ListProviders returns a page of upstream providers.
func (c *Client) ListProviders(ctx context.Context, params ListParams) (*Page[Provider], error) {
	var page Page[Provider]
	if err := c.Do(ctx, http.MethodGet, "/providers", params.Values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ProviderBalance asks the panel to fetch a provider's live balance.
func (c *Client) ProviderBalance(ctx context.Context, providerID int64) (*ProviderBalance, error) {
	var balance ProviderBalance
	if err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/providers/%d/balance", providerID), nil, nil, &balance); err != nil {
		return nil, err
	}
	if balance.ProviderID == 0 {
		balance.ProviderID = providerID
	}
	return &balance, nil
}

// ListCategories returns a page of service categories.
func (c *Client) ListCategories(ctx context.Context, params ListParams) (*Page[Category], error) {
	var page Page[Category]
	if err := c.getCached(ctx, "/categories", params.Values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListServices returns a page of services.
func (c *Client) ListServices(ctx context.Context, params ListParams) (*Page[Service], error) {
	var page Page[Service]
	if err := c.getCached(ctx, "/services", params.Values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListTickets returns a page of support tickets.
func (c *Client) ListTickets(ctx context.Context, params ListParams) (*Page[Ticket], error) {
	var page Page[Ticket]
	if err := c.Do(ctx, http.MethodGet, "/tickets", params.Values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetTicket returns a ticket with its message thread.
func (c *Client) GetTicket(ctx context.Context, id int64) (*Ticket, error) {
	var ticket Ticket
	if err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/tickets/%d", id), nil, nil, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ReplyTicket posts a staff reply and returns the updated ticket.
func (c *Client) ReplyTicket(ctx context.Context, id int64, message string) (*Ticket, error) {
	var ticket Ticket
	body := map[string]string{"message": message}
	if err := c.Do(ctx, http.MethodPost, fmt.Sprintf("/tickets/%d/reply", id), nil, body, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// CloseTicket closes a ticket.
func (c *Client) CloseTicket(ctx context.Context, id int64) (*Ticket, error) {
	var ticket Ticket
	if err := c.Do(ctx, http.MethodPost, fmt.Sprintf("/tickets/%d/close", id), nil, nil, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListUsers returns a page of users.
func (c *Client) ListUsers(ctx context.Context, params ListParams) (*Page[User], error) {
	var page Page[User]
	if err := c.Do(ctx, http.MethodGet, "/users", params.Values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListPayments returns a page of wallet transactions.
func (c *Client) ListPayments(ctx context.Context, params ListParams) (*Page[Payment], error) {
	var page Page[Payment]
	if err := c.Do(ctx, http.MethodGet, "/payments", params.Values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// TopUp credits a user's wallet and returns the created payment.
func (c *Client) TopUp(ctx context.Context, req TopUpRequest) (*Payment, error) {
	if req.UserID <= 0 {
		return nil, fmt.Errorf("user id is required")
	}
	if req.Amount == "" {
		return nil, fmt.Errorf("amount is required")
	}
	var payment Payment
	if err := c.Do(ctx, http.MethodPost, "/payments/top-up", nil, req, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}
