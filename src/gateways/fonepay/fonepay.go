package fonepay

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"esn/src/config"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrMissingParams is returned when a redirect URL is requested without an
// amount or order reference.
var ErrMissingParams = errors.New("fonepay: missing required parameters")

type Config struct {
	BaseURL      string
	MerchantCode string
	SecretKey    string
	ReturnURL    string
}

type Client struct {
	baseURL      string
	merchantCode string
	secretKey    string
	returnURL    string
	verifier     Verifier
	now          func() time.Time
}

func New(cfg Config, v Verifier) *Client {
	return &Client{
		baseURL:      cfg.BaseURL,
		merchantCode: cfg.MerchantCode,
		secretKey:    cfg.SecretKey,
		returnURL:    cfg.ReturnURL,
		verifier:     v,
		now:          time.Now,
	}
}

var client *Client

func GetClient() *Client {
	if client != nil {
		return client
	}
	cfg := Config{
		BaseURL:      config.FonepayBaseURL(),
		MerchantCode: config.FonepayMerchantCode(),
		SecretKey:    config.FonepaySecretKey(),
		ReturnURL:    fmt.Sprintf("%s/api/v1/payments/fonepay/callback", config.AppHost()),
	}
	var v Verifier
	if config.FonepaySandboxBypass() {
		v = NewPermissiveSandboxVerifier(cfg)
	} else {
		v = NewStrictVerifier(cfg)
	}
	client = New(cfg, v)
	return client
}

// NewClient Replace the singleton with a custom client implementation
func NewClient(c *Client) *Client {
	client = c
	return client
}

// BuildRedirectURL composes the hosted-checkout URL. The digital verification
// value (DV) is an HMAC-SHA512 digest over the canonical field sequence
// PID,MD,AMT,CRN,DT,R1,R2,RU keyed with the merchant secret. Amount is in
// rupees, prn is the ticket request id used as merchant reference.
func (c *Client) BuildRedirectURL(amount int64, prn string, orderName string) (string, error) {
	if amount <= 0 || prn == "" {
		return "", ErrMissingParams
	}
	fields := map[string]string{
		"PID": c.merchantCode,
		"MD":  "P",
		"AMT": fmt.Sprintf("%d", amount),
		"CRN": "NPR",
		"DT":  c.now().Format("01/02/2006"),
		"R1":  prn,
		"R2":  orderName,
		"RU":  c.returnURL,
	}
	canonical := strings.Join([]string{
		fields["PID"], fields["MD"], fields["AMT"], fields["CRN"],
		fields["DT"], fields["R1"], fields["R2"], fields["RU"],
	}, ",")
	dv := Digest(c.secretKey, canonical)

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("PRN", prn)
	q.Set("DV", dv)
	return fmt.Sprintf("%s/api/merchantRequest?%s", c.baseURL, q.Encode()), nil
}

// Digest computes the hex HMAC-SHA512 signature Fonepay expects on both the
// outbound redirect and the verification exchange.
func Digest(key string, message string) string {
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

type VerifyParams struct {
	PRN string
	PID string
	UID string
	BID string
	AMT string
}

// Verify delegates to the configured verifier strategy.
func (c *Client) Verify(ctx context.Context, params *VerifyParams) (bool, error) {
	return c.verifier.Verify(ctx, params)
}
