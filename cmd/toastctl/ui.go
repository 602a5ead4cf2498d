package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/GGBond-gogo/mrtoast/internal/db"
	"github.com/GGBond-gogo/mrtoast/internal/game"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptSecret reads one line with terminal echo disabled.
func promptSecret(label string) (string, error) {
	fmt.Printf("%s: ", label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func promptSymbol(label string) (string, error) {
	for {
		symbol, err := promptRequired(label)
		if err != nil {
			return "", err
		}
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if err := game.ValidateSymbol(symbol); err != nil {
			printWarn(err.Error())
			continue
		}
		return symbol, nil
	}
}

func renderLobby(games []game.GameSummary) {
	accent.Println("\n== LOBBY ==")
	if len(games) == 0 {
		printInfo("No tables open right now.")
		return
	}
	fmt.Printf("%-8s %-12s %-7s %-8s %-9s %-18s\n", "CODE", "PHASE", "ROUND", "SEATS", "PRIVATE", "OPENED")
	for _, g := range games {
		private := "no"
		if g.Private {
			private = "yes"
		}
		fmt.Printf("%-8s %-12s %-7d %d/%-6d %-9s %-18s\n",
			g.GameID,
			string(g.Phase),
			g.Round,
			g.Players, g.MaxPlayers,
			private,
			g.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	fmt.Println()
}

func renderTable(snap game.Snapshot) {
	accent.Printf("\n== TABLE %s ==\n", snap.GameID)
	fmt.Printf("Phase:   %s", phaseLabel(snap.Phase))
	if snap.Phase.Active() {
		fmt.Printf("  (round %d, %ds left)", snap.Round, snap.TimeRemaining)
	}
	fmt.Println()
	if snap.Winner != "" {
		fmt.Printf("Winner:  the %s side, after %d rounds\n", snap.Winner, snap.Round)
	}
	fmt.Printf("Market:  %s\n", trendLabel(snap.Market.Trend))
	if ev := snap.Market.Event; ev != nil {
		warn.Printf("Event:   %s\n", ev.Description)
	}

	renderStocks(snap.Market.Stocks)
	renderSeats(snap)
	renderVotes(snap)
	renderChat(snap)
	renderYou(snap)
	fmt.Println()
}

func renderStocks(stocks []game.StockSnapshot) {
	fmt.Println()
	accent.Println("Stocks")
	if len(stocks) == 0 {
		printInfo("No stocks listed.")
		return
	}
	fmt.Printf("%-8s %-12s %14s %10s %10s\n", "SYMBOL", "SECTOR", "PRICE", "CHANGE", "TOTAL")
	for _, s := range stocks {
		fmt.Printf("%-8s %-12s %14s %10s %10s\n",
			s.Symbol,
			s.Sector,
			formatToast(s.PriceMicros),
			colorizePercent(s.ChangePct),
			colorizePercent(s.TotalReturnPct),
		)
	}
}

func renderSeats(snap game.Snapshot) {
	fmt.Println()
	accent.Println("Seats")
	fmt.Printf("%-3s %-22s %-6s %14s %5s %6s\n", "", "PLAYER", "", "NET WORTH", "SUS", "TRUST")
	for i, p := range snap.Players {
		status := ""
		if !p.IsAlive {
			status = danger.Sprint("out")
		}
		name := p.Name
		if p.IsAI {
			name += " (bot)"
		}
		if snap.You != nil && p.ID == snap.You.ID {
			name += " *"
		}
		fmt.Printf("%-3d %-22s %-6s %14s %5d %6d\n",
			i+1,
			truncate(name, 22),
			status,
			formatToast(p.NetWorthMicros),
			p.Suspicion,
			p.Trust,
		)
	}
}

func renderVotes(snap game.Snapshot) {
	if len(snap.Votes) == 0 {
		return
	}
	type tally struct {
		target string
		voters []string
	}
	tallies := make([]tally, 0, len(snap.Votes))
	for target, voters := range snap.Votes {
		tallies = append(tallies, tally{target: target, voters: voters})
	}
	sort.Slice(tallies, func(i, j int) bool {
		if len(tallies[i].voters) != len(tallies[j].voters) {
			return len(tallies[i].voters) > len(tallies[j].voters)
		}
		return tallies[i].target < tallies[j].target
	})
	fmt.Println()
	accent.Println("Votes")
	for _, t := range tallies {
		names := make([]string, 0, len(t.voters))
		for _, id := range t.voters {
			names = append(names, playerName(snap, id))
		}
		fmt.Printf("%-22s %3d  (%s)\n",
			truncate(playerName(snap, t.target), 22),
			len(t.voters),
			strings.Join(names, ", "),
		)
	}
}

func renderChat(snap game.Snapshot) {
	if len(snap.Messages) == 0 {
		return
	}
	fmt.Println()
	accent.Println("Table Talk")
	start := 0
	if len(snap.Messages) > 8 {
		start = len(snap.Messages) - 8
	}
	for _, m := range snap.Messages[start:] {
		when := m.At.Local().Format("15:04")
		if m.Type == game.MessageSystem {
			neutral.Printf("%s  * %s\n", when, m.Message)
			continue
		}
		fmt.Printf("%s  %s: %s\n", when, m.PlayerName, m.Message)
	}
}

func renderYou(snap game.Snapshot) {
	if snap.You == nil {
		return
	}
	you := snap.You
	fmt.Println()
	accent.Println("Your Seat")
	fmt.Printf("Cash:      %s toast\n", formatToast(you.MoneyMicros))
	fmt.Printf("Net Worth: %s toast\n", formatToast(you.NetWorthMicros))
	fmt.Printf("P/L:       %s toast\n", colorizeToast(you.NetWorthMicros-game.StartingMoneyMicros))
	if snap.Role != "" {
		fmt.Printf("Role:      %s\n", roleLabel(snap.Role))
	}
	if len(you.Holdings) > 0 {
		syms := make([]string, 0, len(you.Holdings))
		for sym := range you.Holdings {
			syms = append(syms, sym)
		}
		sort.Strings(syms)
		parts := make([]string, 0, len(syms))
		for _, sym := range syms {
			parts = append(parts, fmt.Sprintf("%s x%d", sym, you.Holdings[sym]))
		}
		fmt.Printf("Holdings:  %s\n", strings.Join(parts, ", "))
	}
	fmt.Printf("Hand:      %d cards\n", you.CardCount)
}

func renderHand(hand []game.CardView) {
	accent.Println("\n== YOUR HAND ==")
	if len(hand) == 0 {
		printInfo("No cards in hand.")
		return
	}
	for i, c := range hand {
		fmt.Printf("%2d. %s  [%s, %s]\n", i+1, c.Name, c.Type, c.Rarity)
		neutral.Printf("    %s\n", c.Description)
		var notes []string
		if c.NeedsTarget {
			notes = append(notes, "needs a target")
		}
		if c.UndercoverOnly {
			notes = append(notes, "undercover only")
		}
		if len(notes) > 0 {
			warn.Printf("    %s\n", strings.Join(notes, ", "))
		}
		fmt.Printf("    id: %s\n", c.ID)
	}
	fmt.Println()
}

func renderTrade(rec game.TradeRecord) {
	accent.Printf("\n== ORDER %s ==\n", strings.ToUpper(rec.Action))
	fmt.Printf("Symbol:  %s\n", rec.Symbol)
	fmt.Printf("Shares:  %s\n", comma(rec.Shares))
	fmt.Printf("Price:   %s toast\n", formatToast(rec.PriceMicros))
	fmt.Printf("Total:   %s toast\n", formatToast(rec.CostMicros))
	fmt.Println()
}

func renderCardPlayed(out game.CardPlayed) {
	accent.Println("\n== CARD PLAYED ==")
	fmt.Printf("Card:    %s\n", out.Card.Name)
	if out.TargetName != "" {
		fmt.Printf("Target:  %s\n", out.TargetName)
	}
	fmt.Printf("Effect:  %s\n", out.Message)
	fmt.Println()
}

func renderVoteCounts(snap game.Snapshot, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	type row struct {
		name  string
		votes int
	}
	rows := make([]row, 0, len(counts))
	for id, n := range counts {
		rows = append(rows, row{name: playerName(snap, id), votes: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].votes != rows[j].votes {
			return rows[i].votes > rows[j].votes
		}
		return rows[i].name < rows[j].name
	})
	accent.Println("\nTally")
	for _, r := range rows {
		fmt.Printf("%-22s %3d\n", truncate(r.name, 22), r.votes)
	}
	fmt.Println()
}

func renderHistory(rows []db.GameRow) {
	accent.Println("\n== MATCH HISTORY ==")
	if len(rows) == 0 {
		printInfo("No finished games recorded yet.")
		return
	}
	fmt.Printf("%-8s %-12s %-7s %-8s %-18s\n", "CODE", "WINNER", "ROUNDS", "PLAYERS", "ENDED")
	for _, g := range rows {
		fmt.Printf("%-8s %-12s %-7d %-8d %-18s\n",
			g.GameID,
			g.Winner,
			g.Rounds,
			g.Players,
			g.EndedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	fmt.Println()
}

func renderLeaders(rows []db.LeaderboardRow) {
	accent.Println("\n== LEADERBOARD ==")
	if len(rows) == 0 {
		printInfo("No ranked players yet.")
		return
	}
	fmt.Printf("%-6s %-18s %-7s %-6s %14s\n", "RANK", "PLAYER", "GAMES", "WINS", "BEST WORTH")
	for i, r := range rows {
		fmt.Printf("%-6d %-18s %-7d %-6d %14s\n",
			i+1,
			truncate(r.Name, 18),
			r.Games,
			r.Wins,
			formatToast(r.BestWorthMicros),
		)
	}
	fmt.Println()
}

func playerName(snap game.Snapshot, id string) string {
	for _, p := range snap.Players {
		if p.ID == id {
			return p.Name
		}
	}
	return id
}

func phaseLabel(p game.Phase) string {
	switch p {
	case game.PhaseWaiting:
		return neutral.Sprint("waiting")
	case game.PhaseInvestment:
		return success.Sprint("investment")
	case game.PhaseDiscussion:
		return warn.Sprint("discussion")
	case game.PhaseVoting:
		return danger.Sprint("voting")
	case game.PhaseGameEnd:
		return accent.Sprint("game over")
	default:
		return string(p)
	}
}

func trendLabel(t game.Trend) string {
	switch t {
	case game.TrendBull:
		return success.Sprint("bull")
	case game.TrendBear:
		return danger.Sprint("bear")
	default:
		return neutral.Sprint(string(t))
	}
}

func roleLabel(r game.Role) string {
	switch r {
	case game.RoleUndercover:
		return danger.Sprint("undercover")
	case game.RoleCivilian:
		return success.Sprint("civilian")
	default:
		return string(r)
	}
}

func colorizeToast(v int64) string {
	text := signedToast(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func colorizePercent(v float64) string {
	text := fmt.Sprintf("%+.2f%%", v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func formatToast(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := v / game.MicrosPerToast
	frac := (v % game.MicrosPerToast) / 10_000
	return fmt.Sprintf("%s%s.%02d", sign, comma(whole), frac)
}

func signedToast(v int64) string {
	if v > 0 {
		return "+" + formatToast(v)
	}
	return formatToast(v)
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
