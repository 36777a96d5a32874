// Package compute summarizes through a 0G serving provider. The provider
// exposes an OpenAI-compatible endpoint; requests are paid from a broker
// wallet and authenticated with a signature over the wallet address and a
// timestamp.
package compute

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/internal/pipeline"
	"github.com/vispark/vispark-api/internal/service/summary"
	"github.com/vispark/vispark-api/pkg/logger"
)

// Request headers carrying the broker signature.
const (
	HeaderAddress   = "X-Broker-Address"
	HeaderTimestamp = "X-Broker-Timestamp"
	HeaderSignature = "X-Broker-Signature"
)

// BalanceReader reads an account balance. *ethclient.Client satisfies it.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Config configures the compute summarizer.
type Config struct {
	PrivateKey    string
	ProviderURL   string
	Model         string
	MinBalanceWei string
	Timeout       time.Duration
}

// Service is a summary.Summarizer that pays for inference from a broker wallet.
type Service struct {
	inner      *summary.OpenAI
	key        *ecdsa.PrivateKey
	address    common.Address
	balances   BalanceReader
	minBalance *big.Int
	now        func() time.Time
	logger     *zap.Logger
}

var _ summary.Summarizer = (*Service)(nil)

// Dial connects to the EVM JSON-RPC endpoint used for balance checks.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("%w: compute rpc url is not set", errs.ErrMisconfigured)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial compute rpc: %v", errs.ErrUpstream, err)
	}
	return client, nil
}

// New creates a compute summarizer. balances may be nil to skip balance checks.
func New(cfg Config, balances BalanceReader, log *zap.Logger, m *metrics.Metrics, opts ...option.RequestOption) (*Service, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("%w: compute private key is not set", errs.ErrMisconfigured)
	}
	if cfg.ProviderURL == "" {
		return nil, fmt.Errorf("%w: compute provider url is not set", errs.ErrMisconfigured)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: parse compute private key: %v", errs.ErrMisconfigured, err)
	}

	minBalance := new(big.Int)
	if cfg.MinBalanceWei != "" {
		if _, ok := minBalance.SetString(cfg.MinBalanceWei, 10); !ok {
			return nil, fmt.Errorf("%w: invalid compute min balance %q", errs.ErrMisconfigured, cfg.MinBalanceWei)
		}
	}

	s := &Service{
		key:        key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		balances:   balances,
		minBalance: minBalance,
		now:        time.Now,
		logger:     logger.OrNop(log),
	}

	reqOpts := append([]option.RequestOption{option.WithMiddleware(s.signMiddleware)}, opts...)
	inner, err := summary.NewOpenAI(summary.Config{
		Provider: "compute",
		APIKey:   s.address.Hex(),
		BaseURL:  strings.TrimRight(cfg.ProviderURL, "/") + "/",
		Model:    cfg.Model,
		Timeout:  cfg.Timeout,
	}, log, m, reqOpts...)
	if err != nil {
		return nil, err
	}
	s.inner = inner

	return s, nil
}

// Address returns the broker wallet address.
func (s *Service) Address() common.Address {
	return s.address
}

// CheckBalance returns the broker balance and fails when it is below the
// configured minimum.
func (s *Service) CheckBalance(ctx context.Context) (*big.Int, error) {
	if s.balances == nil {
		return nil, nil
	}

	balance, err := s.balances.BalanceAt(ctx, s.address, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: read broker balance: %v", errs.ErrUpstream, err)
	}
	if balance.Cmp(s.minBalance) < 0 {
		s.logger.Error("compute broker balance too low",
			zap.String("address", s.address.Hex()),
			zap.String("balance_wei", balance.String()),
			zap.String("min_balance_wei", s.minBalance.String()),
		)
		return balance, fmt.Errorf("%w: broker balance %s wei below minimum %s", errs.ErrMisconfigured, balance, s.minBalance)
	}
	return balance, nil
}

// Summarize checks the broker balance and requests a complete summary.
func (s *Service) Summarize(ctx context.Context, req pipeline.SummaryRequest) (*summary.Summary, error) {
	if _, err := s.CheckBalance(ctx); err != nil {
		return nil, err
	}
	return s.inner.Summarize(ctx, req)
}

// StreamSummary checks the broker balance and starts a streamed summary.
func (s *Service) StreamSummary(ctx context.Context, req pipeline.SummaryRequest) (pipeline.Stream, error) {
	if _, err := s.CheckBalance(ctx); err != nil {
		return nil, err
	}
	return s.inner.StreamSummary(ctx, req)
}

// Sign sets the address, timestamp and signature headers on h.
func (s *Service) Sign(h http.Header) error {
	ts := s.now().Unix()
	sig, err := crypto.Sign(SigningHash(s.address, ts).Bytes(), s.key)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	h.Set(HeaderAddress, s.address.Hex())
	h.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	h.Set(HeaderSignature, hexutil.Encode(sig))
	return nil
}

func (s *Service) signMiddleware(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	if err := s.Sign(req.Header); err != nil {
		return nil, err
	}
	return next(req)
}

// SigningHash is the keccak256 digest signed for a request.
func SigningHash(address common.Address, timestamp int64) common.Hash {
	return crypto.Keccak256Hash([]byte(address.Hex() + ":" + strconv.FormatInt(timestamp, 10)))
}
