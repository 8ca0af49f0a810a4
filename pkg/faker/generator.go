package faker

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand" // Using weak random for test data generation only
	"time"

	"github.com/google/uuid"

	"github.com/siqueiraa/FraudFlow/pkg/transaction"
)

const (
	maxCards        = 50     // Number of distinct test cards
	lowAmountMax    = 500.0  // Upper bound for ordinary purchases
	highAmountMin   = 1500.0 // Lower bound for large purchases
	highAmountRange = 8500.0
)

var (
	currencies    = []string{"USD", "EUR", "GBP", "BRL"}
	safeCountries = []string{"US", "FR", "DE", "GB", "BR", "CA"}
	riskCountries = []string{"RU", "BY", "UA", "KP", "IR"}
	merchants     = []string{"acme-store", "coffee-hub", "fly-away", "gadget-world", "grocer"}
)

// Generator produces synthetic transactions, a share of which trip the
// default risk policy either by amount or by country.
type Generator struct {
	rng           *rand.Rand
	cards         []string
	highRiskRatio float64
}

func New(seed int64, highRiskRatio float64) *Generator {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // Using weak random for test data generation only
	cards := make([]string, maxCards)
	for i := range cards {
		cards[i] = fmt.Sprintf("%04d", rng.Intn(10000))
	}
	return &Generator{rng: rng, cards: cards, highRiskRatio: highRiskRatio}
}

func (g *Generator) pick(from []string) string { return from[g.rng.Intn(len(from))] }

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// Transaction returns one payload stamped at now.
func (g *Generator) Transaction(now time.Time) map[string]any {
	amount := round2(1 + g.rng.Float64()*lowAmountMax)
	country := g.pick(safeCountries)

	if g.rng.Float64() < g.highRiskRatio {
		if g.rng.Intn(2) == 0 {
			amount = round2(highAmountMin + g.rng.Float64()*highAmountRange)
		} else {
			country = g.pick(riskCountries)
		}
	}

	return map[string]any{
		transaction.FieldID:        uuid.NewString(),
		transaction.FieldTimestamp: now.UTC().Format(transaction.IngestTSLayout),
		transaction.FieldAmount:    amount,
		transaction.FieldCurrency:  g.pick(currencies),
		transaction.FieldCountry:   country,
		transaction.FieldMerchant:  g.pick(merchants),
		transaction.FieldCardLast4: g.pick(g.cards),
		transaction.FieldFeatures: map[string]any{
			"device_trust": round2(g.rng.Float64()),
		},
	}
}

// Admitter accepts a transaction payload, typically ingest.Service.
type Admitter interface {
	Admit(ctx context.Context, payload map[string]any) (transaction.Transaction, error)
}

// Emit sends one transaction per interval until ctx is done or count
// transactions were admitted (count <= 0 means no limit).
func (g *Generator) Emit(ctx context.Context, sink Admitter, interval time.Duration, count int) int {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
	for count <= 0 || sent < count {
		tx, err := sink.Admit(ctx, g.Transaction(time.Now()))
		if err != nil {
			log.Printf("[Fakegen] failed to send transaction: %v", err)
		} else {
			sent++
			log.Printf("[Fakegen] sent tx=%s amount=%.2f country=%s", tx.ID, tx.Amount, tx.Country)
		}

		select {
		case <-ctx.Done():
			return sent
		case <-ticker.C:
		}
	}
	return sent
}
