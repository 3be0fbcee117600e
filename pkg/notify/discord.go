package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var hundred = decimal.NewFromInt(100)

const (
	colorStartup     = 0x03b2f8
	colorOpportunity = 0x00ff00
	colorExecuted    = 0x9b59b6
	colorShutdown    = 0xe74c3c
)

// DiscordNotifier posts events to a Discord webhook. An empty webhook URL
// disables delivery entirely; sends beyond the rate limit are dropped
// rather than queued so the monitoring loop is never held up.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

type discordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

func NewDiscordNotifier(webhookURL string, logger *logrus.Logger) *DiscordNotifier {
	if webhookURL == "" {
		logger.Warn("No Discord webhook URL configured, notifications disabled")
	}

	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		// Discord webhooks tolerate short bursts but throttle sustained
		// traffic; cap at 10 alerts per minute like the alerting config.
		limiter: rate.NewLimiter(rate.Every(6*time.Second), 10),
		logger:  logger,
	}
}

func (n *DiscordNotifier) NotifyStartup(ctx context.Context, event StartupEvent) {
	testnet := "DISABLED"
	if event.TestnetEnabled {
		testnet = "ENABLED"
	}

	embed := discordEmbed{
		Title:       "🚀 Spread Monitor Started",
		Description: fmt.Sprintf("Mode: **%s**\nTestnet: **%s**", event.Mode, testnet),
		Color:       colorStartup,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Fields: []discordField{
			{
				Name: "Configuration",
				Value: fmt.Sprintf("Pairs: %s\nSpread Threshold: %s%%\nTrade Size: $%s",
					strings.Join(event.Pairs, ", "),
					event.SpreadThreshold.Mul(hundred).StringFixed(2),
					event.TradeSize.StringFixed(2)),
			},
		},
	}

	if event.TestnetEnabled {
		embed.Fields = append(embed.Fields, discordField{
			Name: "Venues",
			Value: fmt.Sprintf("Spot: %s\nPerp: %s",
				connectedLabel(event.SpotConnected),
				connectedLabel(event.PerpConnected)),
		})
	}

	n.post(ctx, discordPayload{Embeds: []discordEmbed{embed}})
}

func (n *DiscordNotifier) NotifyOpportunity(ctx context.Context, event OpportunityEvent) {
	opp := event.Opportunity

	embed := discordEmbed{
		Color:     colorOpportunity,
		Timestamp: opp.DetectedAt.UTC().Format(time.RFC3339),
	}

	if order, ok := event.Order(); ok {
		embed.Title = "🎯 Arbitrage Executed"
		embed.Color = colorExecuted
		embed.Fields = []discordField{
			{
				Name: "Opportunity",
				Value: fmt.Sprintf("Pair: %s\nSpread: %s%%\nExpected Profit: $%s",
					opp.Pair,
					opp.Spread.Mul(hundred).StringFixed(2),
					opp.PotentialProfit.StringFixed(2)),
			},
			{
				Name: "Order",
				Value: fmt.Sprintf("Order ID: `%s`\nStatus: %s\nExecuted: %s",
					order.OrderID, order.Status, order.ExecutedQty.String()),
				Inline: true,
			},
		}
	} else {
		embed.Title = "🎯 Arbitrage Opportunity"
		embed.Description = fmt.Sprintf("%s - Spread: %s%%",
			opp.Pair, opp.Spread.Mul(hundred).StringFixed(2))
	}

	n.post(ctx, discordPayload{Embeds: []discordEmbed{embed}})
}

func (n *DiscordNotifier) NotifyShutdown(ctx context.Context, event ShutdownEvent) {
	n.post(ctx, discordPayload{
		Content: fmt.Sprintf("🛑 Monitor shutting down\nOpen arbitrage positions: %d", event.OpenPositions),
	})
}

func (n *DiscordNotifier) post(ctx context.Context, payload discordPayload) {
	if n.webhookURL == "" {
		return
	}

	if !n.limiter.Allow() {
		n.logger.Warn("Discord rate limit reached, dropping notification")
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.WithError(err).Error("Failed to marshal Discord payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.WithError(err).Error("Failed to build Discord request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.WithError(err).Error("Failed to send Discord notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		n.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(respBody),
		}).Error("Discord webhook rejected notification")
	}
}

func connectedLabel(connected bool) string {
	if connected {
		return "✅ Connected"
	}
	return "❌ Not Connected"
}
