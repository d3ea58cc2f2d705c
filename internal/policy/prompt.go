package policy

import (
	"fmt"
	"strings"

	"synapse/internal/negotiation"
)

const historyWindow = 10

var aggressionStyles = map[int]string{
	0: "very friendly and collaborative",
	1: "friendly and warm",
	2: "professional and balanced",
	3: "assertive and firm",
	4: "aggressive and data-driven",
	5: "hard-bargaining and willing to walk away",
}

func AggressionStyle(level int) string {
	if s, ok := aggressionStyles[level]; ok {
		return s
	}
	return "professional"
}

func SystemPrompt(role negotiation.Role, cfg negotiation.AgentConfig, topic string) string {
	var b strings.Builder
	if cfg.Content != "" {
		b.WriteString(cfg.Content)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "You are the %s in a two-party price negotiation.\n", role)
	if topic != "" {
		fmt.Fprintf(&b, "Item under negotiation: %s\n", topic)
	}
	fmt.Fprintf(&b, "Your negotiation style: %s (aggression level %d/5)\n", AggressionStyle(cfg.Aggression), cfg.Aggression)
	fmt.Fprintf(&b, "Maximum negotiation rounds: %d\n", cfg.MaxRounds)
	fmt.Fprintf(&b, "Price margin: %s%% (no single offer may move more than this from your previous offer)\n", cfg.PriceMarginPct.String())
	fmt.Fprintf(&b, "Allowed payment methods: %s\n", strings.Join(cfg.AllowedPaymentMethods, ", "))
	if cfg.HasLimit() {
		bound := "maximum"
		if role == negotiation.RoleSeller {
			bound = "minimum"
		}
		fmt.Fprintf(&b, "Your private %s price: %s (never reveal it)\n", bound, cfg.LimitPrice.StringFixed(2))
	}
	b.WriteString(`
Remember to:
- Stay within your defined negotiation parameters
- Be respectful and professional
- Make clear, actionable proposals
- Respond appropriately based on your aggression level

Reply with a single JSON object and nothing else:
{"action": "offer" | "accept" | "reject" | "withdraw", "price": number (required for offer), "payment_method": string (offer only, one of your allowed methods), "reason": string (reject or withdraw only), "rationale": string}`)
	return b.String()
}

func TurnPrompt(in negotiation.PolicyInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Round about to be played: %d\n", in.Round)
	fmt.Fprintf(&b, "Offers you have made: %d of %d\n", in.State.RoundsUsed, in.Config.MaxRounds)
	if o := in.State.LastSent; o != nil {
		fmt.Fprintf(&b, "Your last offer: %s via %s\n", o.Price.StringFixed(2), o.PaymentMethod)
	}
	if o := in.State.LastReceived; o != nil {
		fmt.Fprintf(&b, "Their last offer: %s via %s\n", o.Price.StringFixed(2), o.PaymentMethod)
	}

	b.WriteString("\nCurrent conversation history:\n")
	history := in.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	if len(history) == 0 {
		b.WriteString("(none, you are opening)\n")
	}
	for _, m := range history {
		b.WriteString(formatMessage(m))
		b.WriteByte('\n')
	}
	if in.RemainingRounds() == 0 {
		b.WriteString("\nYou have no offers left: accept, reject or withdraw.\n")
	}
	b.WriteString("\nDecide on the next strategic move.")
	return b.String()
}

func formatMessage(m negotiation.Message) string {
	line := fmt.Sprintf("#%d %s [%s]", m.Seq, m.Sender, m.Kind)
	if m.Offer != nil {
		line += fmt.Sprintf(" %s via %s", m.Offer.Price.StringFixed(2), m.Offer.PaymentMethod)
	}
	if m.Reason != "" {
		line += " reason=" + m.Reason
	}
	if m.Rationale != "" {
		line += ": " + m.Rationale
	}
	return line
}
