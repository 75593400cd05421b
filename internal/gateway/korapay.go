package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// SignatureHeader заголовок, в котором шлюз присылает подпись вебхука.
const SignatureHeader = "X-Korapay-Signature"

// Client работает с REST API шлюза (схема Korapay: charges/initialize, charges/{ref}).
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient создаёт клиента. timeout ограничивает каждый HTTP вызов.
func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type customer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type initializeRequest struct {
	Amount          json.Number       `json:"amount"`
	Currency        string            `json:"currency"`
	Reference       string            `json:"reference"`
	RedirectURL     string            `json:"redirect_url,omitempty"`
	NotificationURL string            `json:"notification_url,omitempty"`
	Customer        customer          `json:"customer"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type chargeData struct {
	Reference        string          `json:"reference"`
	PaymentReference string          `json:"payment_reference"`
	CheckoutURL      string          `json:"checkout_url"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
}

// transactionID шлюз может вернуть собственный идентификатор или эхо нашего reference.
func (d chargeData) transactionID() string {
	if d.PaymentReference != "" {
		return d.PaymentReference
	}
	return d.Reference
}

// CreateTransaction инициализирует оплату и возвращает ссылку на checkout.
func (c *Client) CreateTransaction(ctx context.Context, in CreateTransactionInput) (*Transaction, error) {
	body := initializeRequest{
		Amount:          json.Number(in.Amount.StringFixed(2)),
		Currency:        in.Currency,
		Reference:       in.Reference,
		RedirectURL:     in.RedirectURL,
		NotificationURL: in.NotificationURL,
		Customer:        customer{Name: in.CustomerName, Email: in.CustomerEmail},
		Metadata:        in.Metadata,
	}

	var data chargeData
	if err := c.do(ctx, http.MethodPost, "/charges/initialize", body, &data); err != nil {
		return nil, err
	}

	if data.CheckoutURL == "" {
		return nil, fmt.Errorf("%w: пустой checkout_url", ErrUpstream)
	}

	return &Transaction{
		TransactionID: data.transactionID(),
		CheckoutURL:   data.CheckoutURL,
	}, nil
}

// GetTransactionStatus запрашивает текущее состояние транзакции.
func (c *Client) GetTransactionStatus(ctx context.Context, reference string) (Status, error) {
	var data chargeData
	if err := c.do(ctx, http.MethodGet, "/charges/"+url.PathEscape(reference), nil, &data); err != nil {
		return "", err
	}
	return normalizeStatus(data.Status), nil
}

// VerifySignature проверяет подпись вебхука общим секретом.
func (c *Client) VerifySignature(data []byte, signature string) bool {
	return VerifySignature(c.secretKey, data, signature)
}

type webhookBody struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ParseWebhook разбирает тело вебхука. Возвращает также сырой объект data,
// по которому считается подпись.
func ParseWebhook(body []byte) (*WebhookEvent, []byte, error) {
	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, nil, fmt.Errorf("gateway: некорректный вебхук: %w", err)
	}
	if len(wb.Data) == 0 {
		return nil, nil, fmt.Errorf("gateway: в вебхуке нет data")
	}

	var data chargeData
	if err := json.Unmarshal(wb.Data, &data); err != nil {
		return nil, nil, fmt.Errorf("gateway: некорректный data вебхука: %w", err)
	}

	status := normalizeStatus(data.Status)
	if status == StatusPending {
		status = normalizeStatus(wb.Event)
	}

	return &WebhookEvent{
		Event:         wb.Event,
		Reference:     data.Reference,
		TransactionID: data.PaymentReference,
		Status:        status,
		Amount:        data.Amount,
		Currency:      data.Currency,
	}, wb.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}, out *chargeData) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("gateway: не удалось сериализовать запрос: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: не удалось создать запрос: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: чтение ответа: %v", ErrUpstream, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: статус %d, некорректный ответ", ErrUpstream, resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		return fmt.Errorf("%w: статус %d: %s", ErrUpstream, resp.StatusCode, env.Message)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: некорректный data: %v", ErrUpstream, err)
	}

	return nil
}
