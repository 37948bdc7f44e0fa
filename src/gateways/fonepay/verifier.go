package fonepay

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verifier decides whether a callback's payment actually settled on the
// gateway's side. The strategy is fixed at construction, business code never
// branches on the environment.
type Verifier interface {
	Verify(ctx context.Context, params *VerifyParams) (bool, error)
}

// StrictVerifier calls the merchant verification endpoint and treats every
// transport error and every non-success answer as a failed payment. This is
// the only verifier a production build may use.
type StrictVerifier struct {
	baseURL      string
	merchantCode string
	secretKey    string
	hc           *http.Client
}

func NewStrictVerifier(cfg Config) *StrictVerifier {
	return &StrictVerifier{
		baseURL:      cfg.BaseURL,
		merchantCode: cfg.MerchantCode,
		secretKey:    cfg.SecretKey,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (v *StrictVerifier) Verify(ctx context.Context, params *VerifyParams) (bool, error) {
	q := url.Values{}
	q.Set("PRN", params.PRN)
	q.Set("PID", v.merchantCode)
	q.Set("UID", params.UID)
	q.Set("BID", params.BID)
	q.Set("AMT", params.AMT)
	canonical := strings.Join([]string{params.PRN, v.merchantCode, params.UID, params.BID, params.AMT}, ",")
	q.Set("DV", Digest(v.secretKey, canonical))

	verifyURL := fmt.Sprintf("%s/api/merchantRequest/verificationMerchant?%s", v.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, verifyURL, nil)
	if err != nil {
		return false, fmt.Errorf("fonepay: verification request failed: %w", err)
	}
	res, err := v.hc.Do(req)
	if err != nil {
		return false, fmt.Errorf("fonepay: verification request failed: %w", err)
	}
	defer res.Body.Close()
	rbytes, err := io.ReadAll(res.Body)
	if err != nil {
		return false, fmt.Errorf("fonepay: error reading verification response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return false, fmt.Errorf("fonepay: verification returned status %d", res.StatusCode)
	}
	body := strings.ToLower(string(rbytes))
	return strings.Contains(body, "success"), nil
}

// PermissiveSandboxVerifier wraps the strict verifier and degrades failures
// and transport errors to an optimistic success. The Fonepay sandbox does not
// answer verification calls for test merchants, which would make end-to-end
// testing impossible. Construction is gated by config.FonepaySandboxBypass,
// which refuses to enable it when API_ENV is production.
type PermissiveSandboxVerifier struct {
	inner *StrictVerifier
}

func NewPermissiveSandboxVerifier(cfg Config) *PermissiveSandboxVerifier {
	return &PermissiveSandboxVerifier{inner: NewStrictVerifier(cfg)}
}

func (v *PermissiveSandboxVerifier) Verify(ctx context.Context, params *VerifyParams) (bool, error) {
	ok, err := v.inner.Verify(ctx, params)
	if err != nil {
		log.Printf("[fonepay] SANDBOX BYPASS: treating verification error as success for PRN %s: %s\n", params.PRN, err.Error())
		return true, nil
	}
	if !ok {
		log.Printf("[fonepay] SANDBOX BYPASS: treating failed verification as success for PRN %s\n", params.PRN)
		return true, nil
	}
	return true, nil
}
