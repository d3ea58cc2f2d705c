// Command haggle runs negotiations in-process and prints their transcripts.
//
// Usage:
//
//	haggle run --count 4 --listed-price 150 --buyer-opening 100
//	haggle defaults
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"synapse/internal/config"
	"synapse/internal/coordinator"
	"synapse/internal/logging"
	"synapse/internal/negotiation"
	"synapse/internal/policy"
	"synapse/internal/reasoner"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type CLI struct {
	Run      RunCmd      `cmd:"" default:"withargs" help:"Run negotiations and print their transcripts."`
	Defaults DefaultsCmd `cmd:"" help:"Print the buyer and seller defaults loaded from the environment."`
}

type RunCmd struct {
	Count         int           `short:"n" help:"Number of independent negotiations to run concurrently." default:"1"`
	Topic         string        `help:"Product being negotiated (defaults to TOPIC)."`
	ListedPrice   string        `name:"listed-price" help:"Listed price, used as the seller opening when unset."`
	FirstMover    string        `name:"first-mover" help:"buyer or seller (defaults to FIRST_MOVER)."`
	BuyerOpening  string        `name:"buyer-opening" help:"Buyer opening price."`
	BuyerLimit    string        `name:"buyer-limit" help:"Buyer maximum price."`
	SellerOpening string        `name:"seller-opening" help:"Seller opening price."`
	SellerLimit   string        `name:"seller-limit" help:"Seller minimum price."`
	RuleBased     bool          `name:"rule-based" help:"Force the rule-based policy for both agents."`
	TurnTimeout   time.Duration `name:"turn-timeout" help:"Per-turn policy deadline (defaults to TURN_TIMEOUT)."`
	JSON          bool          `help:"Print results as JSON lines."`
}

type DefaultsCmd struct{}

func (c *DefaultsCmd) Run(app *config.AppConfig) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"buyer": app.Negotiation.Buyer, "seller": app.Negotiation.Seller})
}

type result struct {
	Index    int                   `json:"index"`
	ID       string                `json:"session_id"`
	Outcome  negotiation.Outcome   `json:"outcome"`
	Messages []negotiation.Message `json:"messages"`
}

func (c *RunCmd) Run(app *config.AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var completer policy.Completer
	if !c.RuleBased {
		rc, err := reasoner.New(ctx, app.Reasoner)
		if err != nil {
			return err
		}
		if rc != nil {
			completer = rc
		}
	}
	policies := func(role negotiation.Role, agent negotiation.AgentConfig) negotiation.Policy {
		if c.RuleBased {
			return policy.RuleBased{}
		}
		return policy.Select(role, agent, completer)
	}
	coord := coordinator.New(policies, coordinator.LogSink{}, coordinator.Options{
		MaxSessions: max(c.Count, 1),
		TurnTimeout: app.Negotiation.TurnTimeout,
	})
	params, err := c.params()
	if err != nil {
		return err
	}
	return runBatch(ctx, coord, app.Negotiation, params, c.Count, c.printer(os.Stdout))
}

func (c *RunCmd) params() (coordinator.StartParams, error) {
	p := coordinator.StartParams{
		Topic:         c.Topic,
		FirstMover:    c.FirstMover,
		TurnTimeoutMs: int(c.TurnTimeout / time.Millisecond),
	}
	if c.ListedPrice != "" {
		v, err := decimal.NewFromString(c.ListedPrice)
		if err != nil {
			return p, fmt.Errorf("--listed-price: %w", err)
		}
		p.ListedPrice = v
	}
	var err error
	if p.Buyer, err = priceOverlay(c.BuyerOpening, c.BuyerLimit); err != nil {
		return p, fmt.Errorf("buyer: %w", err)
	}
	if p.Seller, err = priceOverlay(c.SellerOpening, c.SellerLimit); err != nil {
		return p, fmt.Errorf("seller: %w", err)
	}
	return p, nil
}

func priceOverlay(opening, limit string) (json.RawMessage, error) {
	fields := map[string]decimal.Decimal{}
	for name, raw := range map[string]string{"openingPrice": opening, "limitPrice": limit} {
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		fields[name] = v
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return json.Marshal(fields)
}

func (c *RunCmd) printer(w io.Writer) func(result) {
	var mu sync.Mutex
	return func(r result) {
		mu.Lock()
		defer mu.Unlock()
		if c.JSON {
			_ = json.NewEncoder(w).Encode(r)
			return
		}
		writeTranscript(w, r)
	}
}

// runBatch starts count independent sessions and runs them concurrently. The
// first failure cancels the rest.
func runBatch(ctx context.Context, coord *coordinator.Coordinator, defaults config.NegotiationConfig, params coordinator.StartParams, count int, emit func(result)) error {
	if count < 1 {
		count = 1
	}
	req, err := params.Resolve(defaults)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			snap, err := coord.Start(gctx, req)
			if err != nil {
				return err
			}
			defer coord.Close(snap.ID)
			out, err := coord.Run(gctx, snap.ID)
			if err != nil {
				return fmt.Errorf("session %s: %w", snap.ID, err)
			}
			msgs, err := coord.Transcript(snap.ID)
			if err != nil {
				return err
			}
			emit(result{Index: i + 1, ID: snap.ID, Outcome: out, Messages: msgs})
			return nil
		})
	}
	return g.Wait()
}

func writeTranscript(w io.Writer, r result) {
	fmt.Fprintf(w, "== negotiation %d (%s)\n", r.Index, r.ID)
	for _, m := range r.Messages {
		var b strings.Builder
		fmt.Fprintf(&b, "%3d %-6s %-8s", m.Seq, m.Sender, m.Kind)
		if m.Offer != nil {
			fmt.Fprintf(&b, " %s via %s", m.Offer.Price.StringFixed(2), m.Offer.PaymentMethod)
		}
		if m.Reason != "" {
			fmt.Fprintf(&b, " reason=%s", m.Reason)
		}
		if m.Detail != "" {
			fmt.Fprintf(&b, " detail=%s", m.Detail)
		}
		if m.Auto {
			b.WriteString(" (auto)")
		}
		if m.Rationale != "" {
			fmt.Fprintf(&b, ": %s", m.Rationale)
		}
		fmt.Fprintln(w, b.String())
	}
	fmt.Fprintf(w, "-> %s\n\n", r.Outcome.Summary)
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("haggle"),
		kong.Description("Run buyer/seller negotiations from the command line."),
		kong.UsageOnError(),
	)
	app, err := config.LoadApp()
	ctx.FatalIfErrorf(err)
	ctx.FatalIfErrorf(logging.Init(app.Log))
	defer logging.Close()

	err = ctx.Run(&app)
	ctx.FatalIfErrorf(err)
}
