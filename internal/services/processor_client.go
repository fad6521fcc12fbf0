package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// ProcessorClient is the external payment-processor collaborator. A card is
// only usable once the processor has accepted its registration.
type ProcessorClient interface {
	RegisterCard(reg ProcessorRegistration) (*ProcessorResult, error)
}

// ProcessorRegistration is the card payload sent to the processor.
type ProcessorRegistration struct {
	CardNumber        string           `json:"cardNumber"`
	ExpiryDate        string           `json:"expiryDate"`
	CVV               string           `json:"cvv"`
	LinkedAccountType string           `json:"linkedAccountType"`
	LinkedAccountID   int              `json:"linkedAccountId"`
	CardType          string           `json:"cardType"`
	CreditLimit       *decimal.Decimal `json:"creditLimit,omitempty"`
}

// ProcessorResult is the processor's verdict on a registration.
type ProcessorResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HTTPProcessorClient calls the processor over HTTP with a bounded timeout.
// A timeout is a hard failure of the registration, never of an
// already-persisted card.
type HTTPProcessorClient struct {
	baseURL string
	client  *http.Client
}

func NewProcessorClient() *HTTPProcessorClient {
	viper.SetDefault("processor.base_url", "http://localhost:7000")
	viper.SetDefault("processor.timeout", 10*time.Second)

	return &HTTPProcessorClient{
		baseURL: viper.GetString("processor.base_url"),
		client:  &http.Client{Timeout: viper.GetDuration("processor.timeout")},
	}
}

func (c *HTTPProcessorClient) RegisterCard(reg ProcessorRegistration) (*ProcessorResult, error) {
	payload, err := json.Marshal(reg)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Post(c.baseURL+"/api/banks/register-card", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("processor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("processor returned status %d", resp.StatusCode)
	}

	var result ProcessorResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode processor response: %w", err)
	}

	return &result, nil
}
