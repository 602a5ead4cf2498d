package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	cl "github.com/GGBond-gogo/mrtoast/internal/cli"
	"github.com/GGBond-gogo/mrtoast/internal/config"
	"github.com/GGBond-gogo/mrtoast/internal/game"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "toastctl",
		Short:        "Mr.Toast table client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "toast API base URL")

	root.AddCommand(
		newCreateCmd(&apiBase),
		newJoinCmd(&apiBase),
		newLeaveCmd(),
		newGamesCmd(&apiBase),
		newStateCmd(&apiBase),
		newInvestCmd(&apiBase),
		newHandCmd(&apiBase),
		newPlayCmd(&apiBase),
		newVoteCmd(&apiBase),
		newChatCmd(&apiBase),
		newAdvanceCmd(&apiBase),
		newAICmd(&apiBase),
		newQRCmd(&apiBase),
		newWatchCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

// seatClient keeps seat commands talking to the server that minted the
// token, even if the local default base changed since the join.
func seatClient(apiBase *string, sess cl.Session) *cl.Client {
	if strings.TrimSpace(sess.APIBaseURL) != "" {
		return cl.NewClient(sess.APIBaseURL)
	}
	return newClient(apiBase)
}

func requireSeat() (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, fmt.Errorf("seat required: %w", err)
	}
	return sess, nil
}

// tableClient resolves which table a read command is about. An explicit
// code wins; the saved seat fills in the token when it matches.
func tableClient(apiBase *string, args []string) (*cl.Client, string, string, error) {
	if len(args) > 0 {
		code := game.NormalizeGameID(args[0])
		if sess, err := cl.LoadSession(); err == nil && sess.GameID == code {
			return seatClient(apiBase, sess), code, sess.Token, nil
		}
		return newClient(apiBase), code, "", nil
	}
	sess, err := cl.LoadSession()
	if err != nil {
		return nil, "", "", fmt.Errorf("no table code given and no saved seat: %w", err)
	}
	return seatClient(apiBase, sess), sess.GameID, sess.Token, nil
}

func isForbidden(err error) bool {
	var apiErr *cl.APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden
}

func newCreateCmd(apiBase *string) *cobra.Command {
	var (
		players int
		rounds  int
		market  string
		name    string
		private bool
		noAI    bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new table and take the host seat",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				v, err := promptRequired("Your name")
				if err != nil {
					return err
				}
				name = v
			}
			passcode := ""
			if private {
				v, err := promptSecret("Table passcode")
				if err != nil {
					return err
				}
				passcode = v
			}
			opts := cl.CreateOptions{
				MaxPlayers: players,
				MaxRounds:  rounds,
				MarketMode: market,
				Passcode:   passcode,
				PlayerName: name,
			}
			if noAI {
				aiFill := false
				opts.AIFill = &aiFill
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.CreateGame(ctx, opts)
			if err != nil {
				return err
			}
			if out.Token != "" && out.Player != nil {
				if err := cl.SaveSession(cl.Session{
					GameID:     out.Game.GameID,
					PlayerID:   out.Player.ID,
					PlayerName: out.Player.Name,
					Token:      out.Token,
					APIBaseURL: client.BaseURL,
				}); err != nil {
					return err
				}
			}
			printSuccess(fmt.Sprintf("Table %s is open.", out.Game.GameID))
			fmt.Printf("Join code: %s\n", out.Game.GameID)
			fmt.Printf("Join URL:  %s\n", out.JoinURL)
			printInfo("Run `toastctl qr` to print a scannable join code.")
			return nil
		},
	}
	cmd.Flags().IntVar(&players, "players", 0, "seats at the table (3-8)")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "rounds before the final tally")
	cmd.Flags().StringVar(&market, "market", "", "market mode (calm, normal, wild)")
	cmd.Flags().StringVar(&name, "name", "", "your display name")
	cmd.Flags().BoolVar(&private, "private", false, "require a passcode to join")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "do not fill empty seats with bots")
	return cmd
}

func newJoinCmd(apiBase *string) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "join [code]",
		Short: "Take a seat at an open table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := codeFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(name) == "" {
				name, err = promptRequired("Your name")
				if err != nil {
					return err
				}
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Join(ctx, code, name, "")
			if isForbidden(err) {
				printWarn("That table asks for a passcode.")
				passcode, perr := promptSecret("Passcode")
				if perr != nil {
					return perr
				}
				out, err = client.Join(ctx, code, name, passcode)
			}
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				GameID:     code,
				PlayerID:   out.Player.ID,
				PlayerName: out.Player.Name,
				Token:      out.Token,
				APIBaseURL: client.BaseURL,
			}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Seated at table %s as %s.", code, out.Player.Name))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "your display name")
	return cmd
}

func newLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Forget the saved seat",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Seat cleared.")
			return nil
		},
	}
}

func newGamesCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List open and running tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Games(ctx)
			if err != nil {
				return err
			}
			renderLobby(out)
			return nil
		},
	}
}

func newStateCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "state [code]",
		Short: "Show the table board",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, gameID, token, err := tableClient(apiBase, args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			snap, err := client.State(ctx, gameID, token)
			if err != nil {
				return err
			}
			renderTable(snap)
			return nil
		},
	}
}

func newInvestCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "invest [buy|sell] [symbol] [shares]",
		Short: "Trade during the investment phase",
		Args:  cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSeat()
			if err != nil {
				return err
			}
			action, err := actionFromArgsOrPrompt(args)
			if err != nil {
				return err
			}
			symbol, err := symbolFromArgsOrPrompt(args, 1)
			if err != nil {
				return err
			}
			shares, err := sharesFromArgsOrPrompt(args, 2)
			if err != nil {
				return err
			}
			client := seatClient(apiBase, sess)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Invest(ctx, sess.GameID, sess.Token, symbol, action, shares)
			if err != nil {
				return err
			}
			renderTrade(out)
			return nil
		},
	}
}

func newHandCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "hand",
		Short: "Show the cards in your hand",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSeat()
			if err != nil {
				return err
			}
			client := seatClient(apiBase, sess)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			snap, err := client.State(ctx, sess.GameID, sess.Token)
			if err != nil {
				return err
			}
			renderHand(snap.Hand)
			return nil
		},
	}
}

func newPlayCmd(apiBase *string) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "play [card]",
		Short: "Play a card from your hand",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSeat()
			if err != nil {
				return err
			}
			client := seatClient(apiBase, sess)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			snap, err := client.State(ctx, sess.GameID, sess.Token)
			if err != nil {
				return err
			}
			if len(snap.Hand) == 0 {
				printInfo("Your hand is empty.")
				return nil
			}
			pick := ""
			if len(args) > 0 {
				pick = args[0]
			} else {
				renderHand(snap.Hand)
				pick, err = promptRequired("Card (number or id)")
				if err != nil {
					return err
				}
			}
			card, err := resolveCard(snap.Hand, pick)
			if err != nil {
				return err
			}
			targetID := ""
			if card.NeedsTarget {
				if strings.TrimSpace(target) == "" {
					renderSeats(snap)
					target, err = promptRequired("Target player")
					if err != nil {
						return err
					}
				}
				t, err := resolvePlayer(snap, target)
				if err != nil {
					return err
				}
				targetID = t.ID
			}
			out, err := client.UseCard(ctx, sess.GameID, sess.Token, card.ID, targetID)
			if err != nil {
				return err
			}
			renderCardPlayed(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "target player name or id")
	return cmd
}

func newVoteCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "vote [player]",
		Short: "Vote to eliminate a player",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSeat()
			if err != nil {
				return err
			}
			client := seatClient(apiBase, sess)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			snap, err := client.State(ctx, sess.GameID, sess.Token)
			if err != nil {
				return err
			}
			pick := ""
			if len(args) > 0 {
				pick = args[0]
			} else {
				renderSeats(snap)
				pick, err = promptRequired("Vote for")
				if err != nil {
					return err
				}
			}
			targetV, err := resolvePlayer(snap, pick)
			if err != nil {
				return err
			}
			counts, err := client.Vote(ctx, sess.GameID, sess.Token, targetV.ID)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Vote cast against %s.", targetV.Name))
			renderVoteCounts(snap, counts)
			return nil
		},
	}
}

func newChatCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message...]",
		Short: "Say something at the table",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSeat()
			if err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				text, err = promptRequired("Message")
				if err != nil {
					return err
				}
			}
			client := seatClient(apiBase, sess)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if _, err := client.SendMessage(ctx, sess.GameID, sess.Token, text); err != nil {
				return err
			}
			printSuccess("Sent.")
			return nil
		},
	}
}

func newAdvanceCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "End the current phase early (host only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSeat()
			if err != nil {
				return err
			}
			client := seatClient(apiBase, sess)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Advance(ctx, sess.GameID, sess.Token)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Table moved to %s (round %d).", out.Phase, out.Round))
			return nil
		},
	}
}

func newAICmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ai",
		Short: "Seat a bot player (host only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSeat()
			if err != nil {
				return err
			}
			client := seatClient(apiBase, sess)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.AddAI(ctx, sess.GameID, sess.Token)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%s pulled up a chair.", out.Name))
			return nil
		},
	}
}

func newQRCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "qr [code]",
		Short: "Print a scannable join code for a table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, gameID, _, err := tableClient(apiBase, args)
			if err != nil {
				return err
			}
			joinURL := client.JoinURL(gameID)
			fmt.Printf("Join table %s at %s\n\n", gameID, joinURL)
			qrterminal.GenerateHalfBlock(joinURL, qrterminal.L, os.Stdout)
			return nil
		},
	}
}

func newWatchCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [code]",
		Short: "Follow a table live",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, gameID, token, err := tableClient(apiBase, args)
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), client, gameID, token)
		},
	}
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Recently finished games",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.History(ctx, limit)
			if err != nil {
				return err
			}
			renderHistory(out)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to fetch")
	return cmd
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "All-time standings across finished games",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Leaderboard(ctx, limit)
			if err != nil {
				return err
			}
			renderLeaders(out)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "rows to fetch")
	return cmd
}

func codeFromArgsOrPrompt(args []string) (string, error) {
	if len(args) > 0 {
		return game.NormalizeGameID(args[0]), nil
	}
	code, err := promptRequired("Join code")
	if err != nil {
		return "", err
	}
	return game.NormalizeGameID(code), nil
}

func actionFromArgsOrPrompt(args []string) (string, error) {
	if len(args) > 0 {
		action := strings.ToLower(strings.TrimSpace(args[0]))
		if action != game.ActionBuy && action != game.ActionSell {
			return "", fmt.Errorf("action must be buy or sell, got %q", args[0])
		}
		return action, nil
	}
	return promptChoice("Action", []string{game.ActionBuy, game.ActionSell}, game.ActionBuy)
}

func symbolFromArgsOrPrompt(args []string, idx int) (string, error) {
	if len(args) > idx {
		symbol := strings.ToUpper(strings.TrimSpace(args[idx]))
		if err := game.ValidateSymbol(symbol); err != nil {
			return "", err
		}
		return symbol, nil
	}
	return promptSymbol("Symbol")
}

func sharesFromArgsOrPrompt(args []string, idx int) (int64, error) {
	if len(args) > idx {
		v, err := strconv.ParseInt(strings.TrimSpace(args[idx]), 10, 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("shares must be a positive whole number, got %q", args[idx])
		}
		return v, nil
	}
	return promptInt64("Shares", 1)
}

// resolveCard accepts a 1-based hand position, a card id, or a card key.
func resolveCard(hand []game.CardView, pick string) (game.CardView, error) {
	pick = strings.TrimSpace(pick)
	if n, err := strconv.Atoi(pick); err == nil {
		if n < 1 || n > len(hand) {
			return game.CardView{}, fmt.Errorf("hand has %d cards, no card %d", len(hand), n)
		}
		return hand[n-1], nil
	}
	for _, c := range hand {
		if c.ID == pick || strings.EqualFold(c.Key, pick) {
			return c, nil
		}
	}
	return game.CardView{}, fmt.Errorf("no card %q in hand", pick)
}

// resolvePlayer accepts a player id or a display name, case-insensitive.
func resolvePlayer(snap game.Snapshot, pick string) (game.PlayerView, error) {
	pick = strings.TrimSpace(pick)
	var byName []game.PlayerView
	for _, p := range snap.Players {
		if p.ID == pick {
			return p, nil
		}
		if strings.EqualFold(p.Name, pick) {
			byName = append(byName, p)
		}
	}
	switch len(byName) {
	case 0:
		return game.PlayerView{}, fmt.Errorf("no player %q at this table", pick)
	case 1:
		return byName[0], nil
	default:
		return game.PlayerView{}, fmt.Errorf("%d players named %q, use the player id", len(byName), pick)
	}
}
