package scenario

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"propertyBank/internal/bank"
)

// Scenario is a bootstrap description plus an ordered list of operations
// replayed against a fresh world.
type Scenario struct {
	Name      string            `yaml:"name"`
	Bootstrap Bootstrap         `yaml:"bootstrap"`
	Accounts  map[string]string `yaml:"accounts"`
	Steps     []Step            `yaml:"steps"`
}

type TokenDef struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
}

type Bootstrap struct {
	Deployer         string        `yaml:"deployer"`
	Bank             string        `yaml:"bank"`
	Staking          string        `yaml:"staking"`
	Properties       string        `yaml:"properties"`
	PropertySymbol   string        `yaml:"property_symbol"`
	Currency         TokenDef      `yaml:"currency"`
	Tokens           []TokenDef    `yaml:"tokens"`
	NativeSymbol     string        `yaml:"native_symbol"`
	RewardFeed       string        `yaml:"reward_feed"`
	BaseYieldPercent uint64        `yaml:"base_yield_percent"`
	MaxPriceAge      time.Duration `yaml:"max_price_age"`
	Start            time.Time     `yaml:"start"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	Caller   string `yaml:"caller"`
	Account  string `yaml:"account"`
	To       string `yaml:"to"`
	Owner    string `yaml:"owner"`
	Spender  string `yaml:"spender"`
	Seller   string `yaml:"seller"`
	Buyer    string `yaml:"buyer"`
	Operator string `yaml:"operator"`
	Receiver string `yaml:"royalty_receiver"`

	Token    string `yaml:"token"`
	Asset    string `yaml:"asset"`
	Feed     string `yaml:"feed"`
	Role     string `yaml:"role"`
	Registry string `yaml:"registry"`

	TokenID    string        `yaml:"token_id"`
	Amount     string        `yaml:"amount"`
	Price      string        `yaml:"price"`
	Decimals   *uint8        `yaml:"decimals"`
	Weight     uint64        `yaml:"weight"`
	RoyaltyBps uint16        `yaml:"royalty_bps"`
	Allowed    *bool         `yaml:"allowed"`
	Count      *int          `yaml:"count"`
	Raw        bool          `yaml:"raw"`
	By         time.Duration `yaml:"by"`

	// Expect names the error the step must fail with.
	Expect string `yaml:"expect"`
}

// Load reads a scenario file. Unknown keys are rejected.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", sc.Name)
	}
	for i, step := range sc.Steps {
		if strings.TrimSpace(step.Op) == "" {
			return nil, fmt.Errorf("step %d: op is required", i+1)
		}
	}
	return &sc, nil
}

// Config converts the bootstrap section into a world configuration.
func (sc *Scenario) Config() (bank.Config, error) {
	b := sc.Bootstrap
	cfg := bank.Config{
		PropertySymbol:   b.PropertySymbol,
		NativeSymbol:     b.NativeSymbol,
		BaseYieldPercent: b.BaseYieldPercent,
		MaxPriceAge:      b.MaxPriceAge,
		Start:            b.Start,
	}

	var err error
	fields := []struct {
		name string
		ref  string
		dst  *common.Address
	}{
		{"deployer", b.Deployer, &cfg.Deployer},
		{"bank", b.Bank, &cfg.Bank},
		{"staking", b.Staking, &cfg.Staking},
		{"properties", b.Properties, &cfg.Properties},
	}
	for _, f := range fields {
		if *f.dst, err = sc.account(f.ref); err != nil {
			return bank.Config{}, fmt.Errorf("bootstrap %s: %w", f.name, err)
		}
	}
	if b.RewardFeed != "" {
		if cfg.RewardFeed, err = parseAddress(b.RewardFeed); err != nil {
			return bank.Config{}, fmt.Errorf("bootstrap reward_feed: %w", err)
		}
	}

	if cfg.Currency, err = b.Currency.tokenSpec(); err != nil {
		return bank.Config{}, fmt.Errorf("bootstrap currency: %w", err)
	}
	for _, def := range b.Tokens {
		tok, err := def.tokenSpec()
		if err != nil {
			return bank.Config{}, fmt.Errorf("bootstrap token %s: %w", def.Symbol, err)
		}
		cfg.Tokens = append(cfg.Tokens, tok)
	}
	return cfg, nil
}

// account resolves a named account or a literal address.
func (sc *Scenario) account(ref string) (common.Address, error) {
	ref = strings.TrimSpace(ref)
	for name, addr := range sc.Accounts {
		if strings.EqualFold(name, ref) {
			return parseAddress(addr)
		}
	}
	return parseAddress(ref)
}

func (d TokenDef) tokenSpec() (bank.TokenSpec, error) {
	addr, err := parseAddress(d.Address)
	if err != nil {
		return bank.TokenSpec{}, err
	}
	decimals := d.Decimals
	if decimals == 0 {
		decimals = 18
	}
	return bank.TokenSpec{Symbol: d.Symbol, Address: addr, Decimals: decimals}, nil
}

func parseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address %q", input)
	}
	return common.HexToAddress(input), nil
}
