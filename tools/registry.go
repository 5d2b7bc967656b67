// Package tools holds the closed set of functions the model may call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/aslamsikder/VoiceRAG-Agent-System/llm"
)

type Name string

const (
	WeatherTool Name = "get_current_weather"
	StockTool   Name = "get_stock_price"
)

type WeatherArgs struct {
	Location string `json:"location" validate:"required"`
}

type StockArgs struct {
	Ticker string `json:"ticker" validate:"required"`
}

// WeatherSource is satisfied by *WeatherClient.
type WeatherSource interface {
	Current(ctx context.Context, location string) (WeatherReport, error)
}

type handler func(ctx context.Context, raw string) (any, error)

type entry struct {
	def    llm.Tool
	handle handler
}

// Registry binds each Name to its schema and handler at construction.
type Registry struct {
	weather  WeatherSource
	prices   PriceSource
	validate *validator.Validate
	logger   *zap.Logger

	order   []Name
	entries map[Name]entry
}

func NewRegistry(weather WeatherSource, prices PriceSource, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prices == nil {
		prices = SimulatedPrices{}
	}

	r := &Registry{
		weather:  weather,
		prices:   prices,
		validate: validator.New(),
		logger:   logger,
	}
	r.order = []Name{WeatherTool, StockTool}
	r.entries = map[Name]entry{
		WeatherTool: {
			def: llm.Tool{
				Name:        string(WeatherTool),
				Description: "Get the current weather in a given location",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"location": {
							Type:        jsonschema.String,
							Description: "The city and state, e.g. San Francisco, CA",
						},
					},
					Required: []string{"location"},
				},
			},
			handle: r.currentWeather,
		},
		StockTool: {
			def: llm.Tool{
				Name:        string(StockTool),
				Description: "Get the current stock price of a company ticker",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"ticker": {
							Type:        jsonschema.String,
							Description: "The stock symbol (e.g., AAPL, TSLA)",
						},
					},
					Required: []string{"ticker"},
				},
			},
			handle: r.stockPrice,
		},
	}
	return r
}

// Definitions returns every tool schema in a stable order.
func (r *Registry) Definitions() []llm.Tool {
	defs := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.entries[name].def)
	}
	return defs
}

// Invoke runs the named tool with raw JSON arguments. It never fails: the
// result is either the tool's JSON payload or an {"error": ...} payload.
func (r *Registry) Invoke(ctx context.Context, name, arguments string) string {
	start := time.Now()
	e, ok := r.entries[Name(name)]
	if !ok {
		r.logger.Warn("unknown tool requested", zap.String("tool", name))
		return ErrorPayload(fmt.Errorf("unknown tool %q", name))
	}

	result, err := e.handle(ctx, arguments)
	if err != nil {
		r.logger.Warn("tool failed", zap.String("tool", name), zap.Error(err), zap.Duration("duration", time.Since(start)))
		return ErrorPayload(err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return ErrorPayload(fmt.Errorf("encode result: %w", err))
	}
	r.logger.Debug("tool invoked", zap.String("tool", name), zap.Duration("duration", time.Since(start)))
	return string(payload)
}

// ErrorPayload renders err as {"error": "<message>"}.
func ErrorPayload(err error) string {
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(payload)
}

func (r *Registry) decode(raw string, dst any) error {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := r.validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (r *Registry) currentWeather(ctx context.Context, raw string) (any, error) {
	var args WeatherArgs
	if err := r.decode(raw, &args); err != nil {
		return nil, err
	}
	if r.weather == nil {
		return nil, fmt.Errorf("weather lookups are not configured")
	}
	return r.weather.Current(ctx, args.Location)
}

func (r *Registry) stockPrice(ctx context.Context, raw string) (any, error) {
	var args StockArgs
	if err := r.decode(raw, &args); err != nil {
		return nil, err
	}
	ticker := strings.ToUpper(strings.TrimSpace(args.Ticker))
	price, err := r.prices.Price(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", ticker, err)
	}
	return StockQuote{Ticker: ticker, Price: price, Currency: "USD"}, nil
}
