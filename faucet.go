package moonveil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
	retrygo "github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/attempt"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/classify"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/metrics"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/retry"
)

// HTTPPoster sends one POST request, optionally through proxy
type HTTPPoster interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte, proxy string) (int, []byte, error)
}

var _ HTTPPoster = (*HTTPClient)(nil)

// HTTPClient is an HTTPPoster building a transport per proxy
type HTTPClient struct {
	Timeout time.Duration

	mu      sync.Mutex
	clients map[string]*http.Client
}

// NewHTTPClient creates a poster with the given per-request timeout
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = FaucetTimeout
	}
	return &HTTPClient{Timeout: timeout, clients: make(map[string]*http.Client)}
}

// ProxyURL parses a proxy entry. Entries without a scheme are treated as http.
func ProxyURL(proxy string) (*url.URL, error) {
	proxy = strings.TrimSpace(proxy)
	if proxy == "" {
		return nil, nil
	}
	if !strings.Contains(proxy, "://") {
		proxy = "http://" + proxy
	}
	u, err := url.Parse(proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", proxy, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy %q: missing host", proxy)
	}
	return u, nil
}

func (c *HTTPClient) client(proxy string) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[proxy]; ok {
		return cl, nil
	}

	proxyURL, err := ProxyURL(proxy)
	if err != nil {
		return nil, err
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	cl := &http.Client{Transport: transport, Timeout: c.Timeout}
	c.clients[proxy] = cl
	return cl, nil
}

// Post sends body to url and returns the status code and response body
func (c *HTTPClient) Post(ctx context.Context, url string, headers map[string]string, body []byte, proxy string) (int, []byte, error) {
	cl, err := c.client(proxy)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := cl.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// ClaimResult is the result of one faucet claim
type ClaimResult struct {
	Outcome          attempt.Outcome
	RateLimited      bool
	BalanceConfirmed bool
}

// FaucetFlow claims native tokens from the faucet for an account
type FaucetFlow struct {
	url         string
	headers     map[string]string
	poster      HTTPPoster
	proxies     []string
	limiter     *rate.Limiter
	network     *chain.Network
	maxAttempts int
	retry       *retry.Controller

	balanceInterval time.Duration
	balanceTimeout  time.Duration

	mu    sync.Mutex
	rng   *rand.Rand
	proxy string
}

// FaucetOption configures a FaucetFlow
type FaucetOption func(*FaucetFlow)

// WithProxies sets the proxy pool requests are spread over
func WithProxies(proxies []string) FaucetOption {
	return func(f *FaucetFlow) {
		f.proxies = proxies
	}
}

// WithFaucetHeaders sets extra request headers
func WithFaucetHeaders(headers map[string]string) FaucetOption {
	return func(f *FaucetFlow) {
		f.headers = headers
	}
}

// WithRateLimit limits faucet requests to perSecond. Zero disables the limit.
func WithRateLimit(perSecond float64) FaucetOption {
	return func(f *FaucetFlow) {
		if perSecond <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithBalanceWait overrides how long and how often the balance is polled
// after a successful claim
func WithBalanceWait(interval, timeout time.Duration) FaucetOption {
	return func(f *FaucetFlow) {
		f.balanceInterval = interval
		f.balanceTimeout = timeout
	}
}

// WithFaucetRand replaces the proxy picker's random source
func WithFaucetRand(rng *rand.Rand) FaucetOption {
	return func(f *FaucetFlow) {
		f.rng = rng
	}
}

// WithFaucetSleep replaces the timer used between claim attempts
func WithFaucetSleep(sleep retry.SleepFunc) FaucetOption {
	return func(f *FaucetFlow) {
		f.retry = retry.New("faucet", f.retry.BaseWait, retry.WithSleep(sleep), retry.WithOnRetry(f.rotateProxy))
	}
}

// NewFaucetFlow creates a claim flow against faucetURL. Claimed funds are
// expected on network.
func NewFaucetFlow(faucetURL string, poster HTTPPoster, network *chain.Network, baseWait time.Duration, maxAttempts int, opts ...FaucetOption) (*FaucetFlow, error) {
	if faucetURL == "" {
		return nil, ErrFaucetNotConfigured
	}
	if network == nil {
		return nil, ErrNetworkNil
	}
	f := &FaucetFlow{
		url:             faucetURL,
		poster:          poster,
		network:         network,
		maxAttempts:     maxAttempts,
		balanceInterval: BalanceWaitInterval,
		balanceTimeout:  BalanceWaitTimeout,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	f.retry = retry.New("faucet", baseWait, retry.WithOnRetry(f.rotateProxy))
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// pickProxy chooses a random proxy from the pool, or none for an empty pool
func (f *FaucetFlow) pickProxy() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.proxies) == 0 {
		f.proxy = ""
		return ""
	}
	f.proxy = f.proxies[f.rng.Intn(len(f.proxies))]
	return f.proxy
}

func (f *FaucetFlow) currentProxy() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proxy
}

func (f *FaucetFlow) rotateProxy(attemptIndex int, outcome attempt.Outcome) {
	proxy := f.pickProxy()
	logger.WithFields(logger.Fields{
		"attempt": attemptIndex + 1,
		"reason":  outcome.Reason,
		"proxy":   redactProxy(proxy),
	}).Debug("rotating faucet proxy")
}

// Claim requests funds for account and, when the faucet accepts, waits for the
// balance on the faucet network to increase. A rate-limited claim skips the
// wait. A balance that never increases is logged, not failed.
func (f *FaucetFlow) Claim(ctx context.Context, account *Account) ClaimResult {
	if account == nil {
		return ClaimResult{Outcome: attempt.Fatal("no account", ErrAccountNil)}
	}
	wallet := account.Address.Hex()

	before, balanceErr := f.network.Client.BalanceAt(ctx, account.Address)
	if balanceErr != nil {
		logger.WithFields(logger.Fields{
			"wallet":  wallet,
			"network": f.network.Name,
			"error":   balanceErr,
		}).Warn("cannot read balance before claim")
	}

	body, err := json.Marshal(map[string]string{"address": wallet})
	if err != nil {
		return ClaimResult{Outcome: attempt.Fatal("encode request", err)}
	}

	f.pickProxy()
	outcome := f.retry.Run(ctx, f.maxAttempts, func(ctx context.Context, attemptIndex int) attempt.Outcome {
		return f.request(ctx, wallet, body, attemptIndex)
	})
	metrics.FaucetRequests.WithLabelValues(outcome.Kind.String()).Inc()

	result := ClaimResult{Outcome: outcome, RateLimited: outcome.Kind == attempt.KindRateLimited}
	fields := logger.Fields{
		"wallet":  wallet,
		"outcome": outcome.String(),
	}
	switch {
	case result.RateLimited:
		logger.WithFields(fields).Warn("faucet rate limited, skipping balance wait")
		return result
	case !outcome.IsSuccess():
		fields["error"] = outcome.Err
		logger.WithFields(fields).Error("faucet claim failed")
		return result
	}

	if outcome.Hash != "" {
		fields["tx_hash"] = outcome.Hash
		fields["explorer"] = f.network.TxURL(outcome.Hash)
	}
	logger.WithFields(fields).Info("faucet claim accepted")

	if balanceErr != nil {
		metrics.FaucetBalanceConfirmations.WithLabelValues("skipped").Inc()
		return result
	}
	result.BalanceConfirmed = f.waitForBalance(ctx, account, before)
	return result
}

func (f *FaucetFlow) request(ctx context.Context, wallet string, body []byte, attemptIndex int) attempt.Outcome {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return classify.Transport(err)
		}
	}

	proxy := f.currentProxy()
	status, respBody, err := f.poster.Post(ctx, f.url, f.headers, body, proxy)
	if err != nil {
		logger.WithFields(logger.Fields{
			"wallet":  wallet,
			"attempt": attemptIndex + 1,
			"proxy":   redactProxy(proxy),
			"error":   err,
		}).Warn("faucet request failed")
		return classify.Transport(err)
	}

	outcome := classify.Faucet(status, respBody)
	logger.WithFields(logger.Fields{
		"wallet":  wallet,
		"attempt": attemptIndex + 1,
		"status":  status,
		"outcome": outcome.String(),
	}).Debug("faucet response")
	return outcome
}

// waitForBalance polls until the balance is strictly greater than before
func (f *FaucetFlow) waitForBalance(ctx context.Context, account *Account, before *big.Int) bool {
	if f.balanceTimeout <= 0 || f.balanceInterval <= 0 {
		return false
	}
	waitCtx, cancel := context.WithTimeout(ctx, f.balanceTimeout)
	defer cancel()

	attempts := uint(f.balanceTimeout/f.balanceInterval) + 1
	after, err := retrygo.DoWithData(func() (*big.Int, error) {
		balance, err := f.network.Client.BalanceAt(waitCtx, account.Address)
		if err != nil {
			return nil, err
		}
		if balance.Cmp(before) <= 0 {
			return nil, ErrBalanceUnchanged
		}
		return balance, nil
	},
		retrygo.Context(waitCtx),
		retrygo.Attempts(attempts),
		retrygo.Delay(f.balanceInterval),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.LastErrorOnly(true),
	)

	fields := logger.Fields{
		"wallet":  account.Address.Hex(),
		"network": f.network.Name,
		"before":  chain.FormatEther(before),
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			metrics.FaucetBalanceConfirmations.WithLabelValues("canceled").Inc()
			return false
		}
		fields["timeout"] = f.balanceTimeout.String()
		fields["error"] = err
		logger.WithFields(fields).Warn("balance did not increase after faucet claim")
		metrics.FaucetBalanceConfirmations.WithLabelValues("timeout").Inc()
		return false
	}

	fields["after"] = chain.FormatEther(after)
	fields["symbol"] = f.network.Symbol
	logger.WithFields(fields).Info("faucet funds received")
	metrics.FaucetBalanceConfirmations.WithLabelValues("confirmed").Inc()
	return true
}

// redactProxy drops credentials from a proxy entry before logging it
func redactProxy(proxy string) string {
	u, err := ProxyURL(proxy)
	if err != nil || u == nil {
		return ""
	}
	return u.Redacted()
}
