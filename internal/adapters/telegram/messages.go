package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"rsiTrendBot/internal/app"
	"rsiTrendBot/internal/domain"
	"rsiTrendBot/internal/strategy"
)

// Messages are rendered for Telegram's HTML parse mode.

const timeLayout = "2006-01-02 15:04:05"

func keyLabel(key domain.InstanceKey) string {
	return key.Symbol + " " + key.Timeframe
}

func mark(done bool) string {
	if done {
		return "✓"
	}
	return "○"
}

func formatPrice(p float64) string {
	s := fmt.Sprintf("%.2f", p)
	intPart, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// WelcomeMessage is the reply to /start.
func WelcomeMessage(keys []domain.InstanceKey) string {
	var symbols, timeframes []string
	seenS, seenT := map[string]bool{}, map[string]bool{}
	for _, k := range keys {
		if !seenS[k.Symbol] {
			seenS[k.Symbol] = true
			symbols = append(symbols, k.Symbol)
		}
		if !seenT[k.Timeframe] {
			seenT[k.Timeframe] = true
			timeframes = append(timeframes, k.Timeframe)
		}
	}

	var b strings.Builder
	b.WriteString("🤖 <b>RSI Follow Trend Bot</b>\n\n")
	b.WriteString("You are now subscribed to trading signals for:\n")
	fmt.Fprintf(&b, "📊 <b>Symbols</b>: %s\n", html.EscapeString(strings.Join(symbols, ", ")))
	fmt.Fprintf(&b, "⏰ <b>Timeframes</b>: %s\n\n", html.EscapeString(strings.Join(timeframes, ", ")))
	b.WriteString(commandList)
	b.WriteString("\nAlerts will be sent when a new signal appears 🚀")
	return b.String()
}

const commandList = `<b>Commands:</b>
/start - Start receiving signals
/stop - Stop receiving signals
/status - Current setup status
/stats - Signal statistics
/help - How the signals work
`

// StoppedMessage is the reply to /stop.
func StoppedMessage(isAdmin bool) string {
	if isAdmin {
		return "ℹ️ This chat is an admin chat and always receives signals."
	}
	return "✅ Signals stopped. Use /start to turn them back on."
}

// HelpMessage explains the signals for the configured parameters.
func HelpMessage(cfg strategy.Config) string {
	ema := fmt.Sprintf("EMA%d", cfg.EMAPeriod)
	wma := fmt.Sprintf("WMA%d", cfg.WMAPeriod)

	var b strings.Builder
	b.WriteString("📚 <b>How the bot works</b>\n\n")
	b.WriteString("<b>Signals:</b>\n")
	fmt.Fprintf(&b, "🟢 <b>BUY #1</b>: cautious buy (from the 2nd RSI/%s cross)\n", ema)
	fmt.Fprintf(&b, "🟢 <b>BUY #2</b>: strong buy (RSI crosses %s)\n", wma)
	fmt.Fprintf(&b, "🔴 <b>SELL #1</b>: cautious sell (from the 2nd RSI/%s cross)\n", ema)
	fmt.Fprintf(&b, "🔴 <b>SELL #2</b>: strong sell (RSI crosses %s)\n\n", wma)
	b.WriteString("<b>4-step setup:</b>\n")
	fmt.Fprintf(&b, "BUY: RSI≥%g → RSI↓%s → RSI↓%s → %s↓%s\n", cfg.Overbought, ema, wma, ema, wma)
	fmt.Fprintf(&b, "SELL: RSI≤%g → RSI↑%s → RSI↑%s → %s↑%s\n\n", cfg.Oversold, ema, wma, ema, wma)
	b.WriteString("<b>Notes:</b>\n")
	b.WriteString("- All 4 steps must complete in order\n")
	b.WriteString("- #1 signals start from the 2nd cross\n")
	b.WriteString("- At most 2 #1 signals per setup\n")
	b.WriteString("- A #2 signal is stronger and ends the cycle\n\n")
	b.WriteString(commandList)
	return b.String()
}

// UnknownCommandMessage is the reply to anything the bot does not understand.
func UnknownCommandMessage() string {
	return "Unknown command. Try /help"
}

// StatusPrompt is shown above the instance keyboard.
func StatusPrompt() string {
	return "📊 Choose a pair and timeframe:"
}

// SignalAlert formats a signal for subscribers.
func SignalAlert(ev *domain.SignalEvent, cfg strategy.Config) string {
	emoji := "🟢"
	if ev.Type.Direction() == domain.Sell {
		emoji = "🔴"
	}
	strength := "⚠️ CAUTIOUS"
	if ev.Type.IsStrong() {
		strength = "💪 STRONG"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>SIGNAL %s</b> %s\n\n", emoji, ev.Type.Label(), emoji)
	fmt.Fprintf(&b, "📊 <b>%s</b> | ⏰ <b>%s</b>\n", html.EscapeString(ev.Key.Symbol), html.EscapeString(ev.Key.Timeframe))
	fmt.Fprintf(&b, "💰 Price: %s\n\n", formatPrice(ev.Price))
	fmt.Fprintf(&b, "<b>Strength:</b> %s\n\n", strength)
	b.WriteString("<b>Indicators:</b>\n")
	fmt.Fprintf(&b, "RSI: %.2f\n", ev.Indicators.RSI)
	fmt.Fprintf(&b, "EMA%d: %.2f\n", cfg.EMAPeriod, ev.Indicators.EMA)
	fmt.Fprintf(&b, "WMA%d: %.2f\n\n", cfg.WMAPeriod, ev.Indicators.WMA)
	fmt.Fprintf(&b, "⏰ %s UTC", ev.Time.UTC().Format(timeLayout))
	return b.String()
}

func writeSetup(b *strings.Builder, title, ready string, s strategy.SetupState, steps [4]string) {
	fmt.Fprintf(b, "<b>%s</b>\n", title)
	done := [4]bool{s.Step1, s.Step2, s.Step3, s.Step4}
	for i, label := range steps {
		fmt.Fprintf(b, "%s Step %d: %s\n", mark(done[i]), i+1, label)
	}
	state := "⏳ Waiting..."
	if s.Ready() {
		state = ready
	}
	fmt.Fprintf(b, "Status: %s\n", state)
	fmt.Fprintf(b, "Crosses: %d\n", s.CrossCount)
	fmt.Fprintf(b, "Entry #1: %d/2\n", s.Entry1Count)
}

// StatusMessage formats the status of one instance.
func StatusMessage(r *app.StatusReport) string {
	ema := fmt.Sprintf("EMA%d", r.Config.EMAPeriod)
	wma := fmt.Sprintf("WMA%d", r.Config.WMAPeriod)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>%s - %s</b>\n", html.EscapeString(r.Key.Symbol), html.EscapeString(r.Key.Timeframe))
	price := formatPrice(r.Price)
	if !r.PriceLive {
		price += " (last close)"
	}
	fmt.Fprintf(&b, "💰 Price: %s\n\n", price)

	if !r.Status.Initialized {
		b.WriteString("<i>Waiting for the first data update.</i>\n\n")
	}
	b.WriteString("<b>Indicators:</b>\n")
	fmt.Fprintf(&b, "RSI: %.2f\n%s: %.2f\n%s: %.2f\n\n", r.Status.Values.RSI, ema, r.Status.Values.EMA, wma, r.Status.Values.WMA)

	writeSetup(&b, "🟢 BUY SETUP:", "🟢 READY!", r.Status.Buy, [4]string{
		fmt.Sprintf("RSI≥%g", r.Config.Overbought),
		"RSI↓" + ema,
		"RSI↓" + wma,
		ema + "↓" + wma,
	})
	b.WriteString("\n")
	writeSetup(&b, "🔴 SELL SETUP:", "🔴 READY!", r.Status.Sell, [4]string{
		fmt.Sprintf("RSI≤%g", r.Config.Oversold),
		"RSI↑" + ema,
		"RSI↑" + wma,
		ema + "↑" + wma,
	})

	if r.LastSignal != nil {
		fmt.Fprintf(&b, "\nLast signal: %s at %s (%s UTC)\n",
			r.LastSignal.Type.Label(), formatPrice(r.LastSignal.Price), r.LastSignal.Time.UTC().Format(timeLayout))
	}
	fmt.Fprintf(&b, "\n⏰ Updated: %s UTC", r.GeneratedAt.UTC().Format("15:04:05"))
	return b.String()
}

// StatsMessage renders the signal totals of every instance as a table.
func StatsMessage(stats []app.KeyStatistics) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.AppendHeader(table.Row{"Pair", "TF", "B#1", "B#2", "S#1", "S#2"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	var total domain.Statistics
	for _, ks := range stats {
		t.AppendRow(table.Row{ks.Key.Symbol, ks.Key.Timeframe, ks.Stats.TotalBuy1, ks.Stats.TotalBuy2, ks.Stats.TotalSell1, ks.Stats.TotalSell2})
		total.TotalBuy1 += ks.Stats.TotalBuy1
		total.TotalBuy2 += ks.Stats.TotalBuy2
		total.TotalSell1 += ks.Stats.TotalSell1
		total.TotalSell2 += ks.Stats.TotalSell2
	}
	t.AppendFooter(table.Row{"Total", "", total.TotalBuy1, total.TotalBuy2, total.TotalSell1, total.TotalSell2})

	return "📈 <b>Signal statistics</b>\n\n<pre>" + html.EscapeString(t.Render()) + "</pre>"
}
