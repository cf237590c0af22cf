package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	GatewayBaseURL  string
	GatewayWSURL    string
	GatewayToken    string
	GatewayIssuer   string
	GatewayTokenTTL time.Duration
	ClientID        string
	InternalToken   string
	WebSocketOrigin string
	UsePositions    bool
	Mode            string
}

func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.GatewayBaseURL = os.Getenv("GATEWAY_BASE_URL")
	if c.GatewayBaseURL == "" {
		missing = append(missing, "GATEWAY_BASE_URL")
	}
	c.GatewayWSURL = os.Getenv("GATEWAY_WS_URL")
	if c.GatewayWSURL == "" {
		missing = append(missing, "GATEWAY_WS_URL")
	}
	c.GatewayToken = os.Getenv("GATEWAY_TOKEN")
	if c.GatewayToken == "" {
		missing = append(missing, "GATEWAY_TOKEN")
	}
	c.GatewayIssuer = os.Getenv("GATEWAY_ISSUER")
	if c.GatewayIssuer == "" {
		c.GatewayIssuer = "lv-finbroker"
	}
	ttl := os.Getenv("GATEWAY_TOKEN_TTL")
	if ttl == "" {
		c.GatewayTokenTTL = 15 * time.Minute
	} else {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return c, err
		}
		c.GatewayTokenTTL = d
	}
	c.ClientID = os.Getenv("CLIENT_ID")
	if c.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")
	if c.InternalToken == "" {
		missing = append(missing, "INTERNAL_API_TOKEN")
	}
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		c.WebSocketOrigin = "*"
	}
	usePositions := os.Getenv("USE_POSITIONS")
	if usePositions == "" {
		c.UsePositions = true
	} else {
		b, err := strconv.ParseBool(usePositions)
		if err != nil {
			return c, err
		}
		c.UsePositions = b
	}
	c.Mode = strings.ToLower(strings.TrimSpace(os.Getenv("BROKER_MODE")))
	if c.Mode == "" {
		c.Mode = "development"
	}
	if c.Mode != "development" && c.Mode != "production" {
		return c, errors.New("invalid BROKER_MODE: use development or production")
	}
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}
