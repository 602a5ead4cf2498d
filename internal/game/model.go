package game

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"
)

// Failure kinds reported across the command boundary.
const (
	KindValidation = "validation_error"
	KindState      = "state_error"
	KindResource   = "resource_error"
	KindNotFound   = "not_found_error"
)

var (
	ErrGameNotFound       = errors.New("game not found")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrTargetNotFound     = errors.New("target player not found")
	ErrStockNotFound      = errors.New("stock not found")
	ErrCardNotFound       = errors.New("card not in hand")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidSymbol      = errors.New("symbol must be 1-6 uppercase letters")
	ErrInvalidTarget      = errors.New("invalid card target")
	ErrSelfVote           = errors.New("cannot vote for yourself")
	ErrWrongPhase         = errors.New("not allowed in the current phase")
	ErrGameEnded          = errors.New("game already ended")
	ErrGameStarted        = errors.New("game already started")
	ErrNotHost            = errors.New("only the host may do this")
	ErrNotEnoughPlayers   = errors.New("not enough players to start")
	ErrGameFull           = errors.New("game is full")
	ErrPlayerDead         = errors.New("player has been eliminated")
	ErrTargetDead         = errors.New("target has been eliminated")
	ErrFrozen             = errors.New("assets frozen this round")
	ErrCardRoleLocked     = errors.New("card is locked to another role")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrBadPasscode        = errors.New("wrong passcode")
)

// Kind folds an engine error into its failure kind. Unknown errors map to
// the empty string and should be treated as internal.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidSymbol),
		errors.Is(err, ErrInvalidTarget),
		errors.Is(err, ErrSelfVote),
		errors.Is(err, ErrBadPasscode):
		return KindValidation
	case errors.Is(err, ErrWrongPhase),
		errors.Is(err, ErrGameEnded),
		errors.Is(err, ErrGameStarted),
		errors.Is(err, ErrNotHost),
		errors.Is(err, ErrNotEnoughPlayers),
		errors.Is(err, ErrPlayerDead),
		errors.Is(err, ErrTargetDead),
		errors.Is(err, ErrFrozen),
		errors.Is(err, ErrCardRoleLocked):
		return KindState
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientShares),
		errors.Is(err, ErrCardNotFound),
		errors.Is(err, ErrGameFull):
		return KindResource
	case errors.Is(err, ErrGameNotFound),
		errors.Is(err, ErrPlayerNotFound),
		errors.Is(err, ErrTargetNotFound),
		errors.Is(err, ErrStockNotFound):
		return KindNotFound
	}
	return ""
}

var symbolRE = regexp.MustCompile(`^[A-Z]{1,6}$`)

func ValidateSymbol(symbol string) error {
	if !symbolRE.MatchString(strings.TrimSpace(symbol)) {
		return ErrInvalidSymbol
	}
	return nil
}

// SanitizeName collapses whitespace and truncates to MaxNameLen runes.
func SanitizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	runes := []rune(name)
	if len(runes) > MaxNameLen {
		runes = runes[:MaxNameLen]
	}
	return string(runes)
}

func ValidateName(name string) error {
	if SanitizeName(name) == "" {
		return fmt.Errorf("%w: empty player name", ErrInvalidInput)
	}
	return nil
}

func ToastToMicros(v float64) int64 {
	return int64(math.Round(v * float64(MicrosPerToast)))
}

func MicrosToToast(v int64) float64 {
	return float64(v) / float64(MicrosPerToast)
}

// NotionalMicros is shares * priceMicros, saturating instead of wrapping
// so callers can compare it against a budget.
func NotionalMicros(shares, priceMicros int64) int64 {
	n, err := notionalMicros(shares, priceMicros)
	if err != nil {
		return math.MaxInt64
	}
	return n
}

// notionalMicros is shares * priceMicros with an overflow guard.
func notionalMicros(shares, priceMicros int64) (int64, error) {
	n := new(big.Int).Mul(big.NewInt(shares), big.NewInt(priceMicros))
	if !n.IsInt64() {
		return 0, fmt.Errorf("%w: order notional overflows", ErrInvalidInput)
	}
	return n.Int64(), nil
}

// MaxAffordableShares is the largest share count whose notional fits the
// budget at the given price.
func MaxAffordableShares(budgetMicros, priceMicros int64) int64 {
	if budgetMicros <= 0 || priceMicros <= 0 {
		return 0
	}
	n := budgetMicros / priceMicros
	if n > MaxOrderShares {
		return MaxOrderShares
	}
	return n
}

const gameIDCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewGameID returns a 6-character join code. Ambiguous characters are
// excluded from the charset.
func NewGameID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("game id entropy unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = gameIDCharset[int(b)%len(gameIDCharset)]
	}
	return string(buf)
}

// NormalizeGameID uppercases a join code so lowercase user input still
// resolves.
func NormalizeGameID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
