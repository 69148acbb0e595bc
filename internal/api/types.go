package api

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Envelope is the response wrapper every panel endpoint uses.
type Envelope[T any] struct {
	Success bool                `json:"success"`
	Data    T                   `json:"data"`
	Message string              `json:"message,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// PageMeta describes one page of a listing.
type PageMeta struct {
	CurrentPage int `json:"current_page" yaml:"current_page"`
	PerPage     int `json:"per_page" yaml:"per_page"`
	Total       int `json:"total" yaml:"total"`
	LastPage    int `json:"last_page" yaml:"last_page"`
}

// Page is a paginated listing.
type Page[T any] struct {
	Items []T      `json:"items" yaml:"items"`
	Meta  PageMeta `json:"meta" yaml:"meta"`
}

// ListParams are the pagination and filter parameters shared by listings.
type ListParams struct {
	Page    int
	PerPage int
	Search  string
	Status  string
	// Filters carries endpoint-specific filters (category_id, provider_id, user_id).
	Filters map[string]string
}

// Values encodes the parameters as a query string, omitting zero values.
func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(p.PerPage))
	}
	if s := strings.TrimSpace(p.Search); s != "" {
		v.Set("search", s)
	}
	if s := strings.TrimSpace(p.Status); s != "" {
		v.Set("status", s)
	}
	for key, value := range p.Filters {
		if strings.TrimSpace(value) != "" {
			v.Set(key, strings.TrimSpace(value))
		}
	}
	return v
}

// Provider is an upstream SMM provider.
type Provider struct {
	ID       int64  `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	URL      string `json:"url" yaml:"url"`
	Balance  string `json:"balance" yaml:"balance"`
	Currency string `json:"currency" yaml:"currency"`
	Status   string `json:"status" yaml:"status"`
}

// ProviderBalance is the live balance reported by an upstream provider.
type ProviderBalance struct {
	ProviderID int64  `json:"provider_id" yaml:"provider_id"`
	Balance    string `json:"balance" yaml:"balance"`
	Currency   string `json:"currency" yaml:"currency"`
}

// Category groups services.
type Category struct {
	ID     int64  `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Sort   int    `json:"sort" yaml:"sort"`
	Status string `json:"status" yaml:"status"`
}

// Service is a sellable SMM service.
type Service struct {
	ID         int64  `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	CategoryID int64  `json:"category_id" yaml:"category_id"`
	ProviderID int64  `json:"provider_id" yaml:"provider_id"`
	Rate       string `json:"rate" yaml:"rate"`
	Min        int64  `json:"min" yaml:"min"`
	Max        int64  `json:"max" yaml:"max"`
	Status     string `json:"status" yaml:"status"`
}

// Ticket is a support conversation.
type Ticket struct {
	ID        int64           `json:"id" yaml:"id"`
	Subject   string          `json:"subject" yaml:"subject"`
	Status    string          `json:"status" yaml:"status"`
	UserID    int64           `json:"user_id" yaml:"user_id"`
	UserEmail string          `json:"user_email" yaml:"user_email"`
	UpdatedAt time.Time       `json:"updated_at" yaml:"updated_at"`
	Messages  []TicketMessage `json:"messages,omitempty" yaml:"messages,omitempty"`
}

// TicketMessage is one message in a ticket thread.
type TicketMessage struct {
	ID        int64     `json:"id" yaml:"id"`
	Author    string    `json:"author" yaml:"author"`
	Staff     bool      `json:"staff" yaml:"staff"`
	Body      string    `json:"body" yaml:"body"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// User is a panel customer or staff account.
type User struct {
	ID      int64  `json:"id" yaml:"id"`
	Email   string `json:"email" yaml:"email"`
	Name    string `json:"name" yaml:"name"`
	Role    string `json:"role" yaml:"role"`
	Balance string `json:"balance" yaml:"balance"`
	Status  string `json:"status" yaml:"status"`
}

// Payment is a wallet transaction.
type Payment struct {
	ID        int64     `json:"id" yaml:"id"`
	UserID    int64     `json:"user_id" yaml:"user_id"`
	Amount    string    `json:"amount" yaml:"amount"`
	Method    string    `json:"method" yaml:"method"`
	Status    string    `json:"status" yaml:"status"`
	Note      string    `json:"note,omitempty" yaml:"note,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// TopUpRequest credits a user's wallet.
type TopUpRequest struct {
	UserID int64  `json:"user_id"`
	Amount string `json:"amount"`
	Method string `json:"method,omitempty"`
	Note   string `json:"note,omitempty"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Tokens is the token pair returned by login and refresh.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in,omitempty"`
	User      *User `json:"user,omitempty"`
}
