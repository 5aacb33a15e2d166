// Package rail предоставляет клиент внешней системы переводов (Value Transfer Rail).
package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

var (
	// ErrAmountTooSmall возвращается, если система переводов отклонила сумму как слишком малую.
	ErrAmountTooSmall = errors.New("transfer amount too small")
	// ErrRecipientRejected возвращается, если получатель не принимает переводы или не существует.
	ErrRecipientRejected = errors.New("transfer recipient rejected")
	// ErrUnavailable возвращается при сетевых ошибках и ошибках на стороне системы переводов.
	ErrUnavailable = errors.New("transfer rail unavailable")
)

// Client инкапсулирует HTTP-взаимодействие с системой переводов.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type transferRequest struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// NewClient создаёт HTTP-клиент для обращения к системе переводов по указанному адресу.
func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Transfer отправляет amount получателю to. Перевод необратим: nil означает, что средства ушли.
func (c *Client) Transfer(ctx context.Context, to model.Identity, amount model.Amount) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("%w: client not configured", ErrUnavailable)
	}

	body, err := json.Marshal(transferRequest{To: string(to), Amount: int64(amount)})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transfers", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s to %s", ErrAmountTooSmall, amount, to)
	case http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: %s (status %d)", ErrRecipientRejected, to, resp.StatusCode)
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}
}
