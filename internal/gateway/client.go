package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"lv-finbroker/internal/types"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Client talks to the exchange trade API over HTTP, with the event stream
// carried over a WebSocket (see stream.go). Requests are authenticated with
// a short-lived HS256 token minted from the account secret.
type Client struct {
	baseURL  string
	wsURL    string
	issuer   string
	secret   []byte
	tokenTTL time.Duration
	http     *http.Client
	log      *zap.Logger

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time

	instMu      sync.Mutex
	instruments map[string]InstrumentInfo

	subsMu sync.Mutex
	subs   map[string]*eventStream
}

var _ Gateway = (*Client)(nil)

func NewClient(baseURL, wsURL, issuer string, secret []byte, tokenTTL time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		wsURL:       wsURL,
		issuer:      issuer,
		secret:      secret,
		tokenTTL:    tokenTTL,
		http:        &http.Client{Timeout: 15 * time.Second},
		log:         log,
		instruments: make(map[string]InstrumentInfo),
		subs:        make(map[string]*eventStream),
	}
}

func (c *Client) bearer() (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	now := time.Now().UTC()
	if c.token != "" && now.Before(c.tokenExpiry.Add(-30*time.Second)) {
		return c.token, nil
	}
	claims := jwt.RegisteredClaims{
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.tokenTTL)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", err
	}
	c.token = signed
	c.tokenExpiry = now.Add(c.tokenTTL)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	token, err := c.bearer()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return fmt.Errorf("gateway %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type submitOrderPayload struct {
	ClientID string `json:"client_id"`
	Board    string `json:"board"`
	Symbol   string `json:"security_code"`
	BuySell  string `json:"buy_sell"`
	Quantity int64  `json:"quantity"`
	Price    string `json:"price,omitempty"`
}

func buySell(side types.OrderSide) string {
	if side == types.OrderSideSell {
		return "Sell"
	}
	return "Buy"
}

func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (PlaceResult, error) {
	payload := submitOrderPayload{
		ClientID: req.ClientID,
		Board:    req.Board,
		Symbol:   req.Symbol,
		BuySell:  buySell(req.Side),
		Quantity: req.Lots,
	}
	if req.Price != nil {
		payload.Price = req.Price.String()
	}
	var out PlaceResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", payload, &out); err != nil {
		return PlaceResult{}, err
	}
	return out, nil
}

type submitStopPayload struct {
	ClientID        string `json:"client_id"`
	Board           string `json:"board"`
	Symbol          string `json:"security_code"`
	BuySell         string `json:"buy_sell"`
	Quantity        int64  `json:"quantity"`
	ActivationPrice string `json:"activation_price"`
	Price           string `json:"price,omitempty"`
	MarketPrice     bool   `json:"market_price"`
}

func (c *Client) SubmitStop(ctx context.Context, req StopRequest) (PlaceResult, error) {
	payload := submitStopPayload{
		ClientID:        req.ClientID,
		Board:           req.Board,
		Symbol:          req.Symbol,
		BuySell:         buySell(req.Side),
		Quantity:        req.Lots,
		ActivationPrice: req.ActivationPrice.String(),
		MarketPrice:     req.LimitPrice == nil,
	}
	if req.LimitPrice != nil {
		payload.Price = req.LimitPrice.String()
	}
	var out PlaceResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/stops", payload, &out); err != nil {
		return PlaceResult{}, err
	}
	return out, nil
}

func (c *Client) CancelOrder(ctx context.Context, clientID string, transactionID int64) error {
	q := url.Values{}
	q.Set("client_id", clientID)
	return c.do(ctx, http.MethodDelete, "/api/v1/orders/"+strconv.FormatInt(transactionID, 10)+"?"+q.Encode(), nil, nil)
}

func (c *Client) CancelStop(ctx context.Context, clientID string, stopID int64) error {
	q := url.Values{}
	q.Set("client_id", clientID)
	return c.do(ctx, http.MethodDelete, "/api/v1/stops/"+strconv.FormatInt(stopID, 10)+"?"+q.Encode(), nil, nil)
}

func (c *Client) GetPortfolio(ctx context.Context, clientID string) (Portfolio, error) {
	q := url.Values{}
	q.Set("client_id", clientID)
	var out Portfolio
	if err := c.do(ctx, http.MethodGet, "/api/v1/portfolio?"+q.Encode(), nil, &out); err != nil {
		return Portfolio{}, err
	}
	return out, nil
}

func (c *Client) GetInstrument(ctx context.Context, board, symbol string) (InstrumentInfo, error) {
	key := board + "." + symbol
	c.instMu.Lock()
	if si, ok := c.instruments[key]; ok {
		c.instMu.Unlock()
		return si, nil
	}
	c.instMu.Unlock()
	q := url.Values{}
	q.Set("board", board)
	q.Set("security_code", symbol)
	var out InstrumentInfo
	if err := c.do(ctx, http.MethodGet, "/api/v1/securities?"+q.Encode(), nil, &out); err != nil {
		return InstrumentInfo{}, err
	}
	if out.LotSize.IsZero() {
		return InstrumentInfo{}, errors.New("instrument has no lot size")
	}
	c.instMu.Lock()
	c.instruments[key] = out
	c.instMu.Unlock()
	return out, nil
}
