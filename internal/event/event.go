package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Topic names used on the broadcaster.
const (
	TopicMetricsUpdated  = "metrics-updated"
	TopicSaleAdded       = "sale-added"
	TopicGoalCelebration = "goal-celebration"
	TopicAlertChanged    = "alert-changed"
)

// SupervisorTopic returns the per-entity detail refresh topic.
func SupervisorTopic(entityRef string) string {
	return "supervisor:" + entityRef
}

// Sale is the canonical "new sale" domain event. Transport payloads are
// decoded into this type exactly once at the boundary; downstream code never
// re-parses amounts or timestamps.
type Sale struct {
	ID         string
	SellerName string
	StoreName  string
	Amount     decimal.Decimal
	Goal       decimal.Decimal
	OccurredAt time.Time
}

// GoalAchieved is the canonical goal-achievement event. CelebrationID is
// filled with a generated uuid when the transport omitted it.
type GoalAchieved struct {
	CelebrationID string
	StoreName     string
	Achieved      decimal.Decimal
	Target        decimal.Decimal
	Percentage    decimal.Decimal
	OccurredAt    time.Time
}

type saleWire struct {
	ID        string          `json:"id"`
	Seller    string          `json:"seller"`
	Store     string          `json:"store"`
	Amount    decimal.Decimal `json:"amount"`
	Goal      decimal.Decimal `json:"goal"`
	Timestamp time.Time       `json:"timestamp"`
}

type goalWire struct {
	StoreName     string          `json:"storeName"`
	Achieved      decimal.Decimal `json:"achieved"`
	Target        decimal.Decimal `json:"target"`
	Percentage    decimal.Decimal `json:"percentage"`
	Timestamp     time.Time       `json:"timestamp"`
	CelebrationID string          `json:"celebrationId"`
}

// DecodeSale parses a transport payload into a canonical Sale.
func DecodeSale(payload []byte) (Sale, error) {
	var wire saleWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Sale{}, fmt.Errorf("decode sale event: %w", err)
	}

	if wire.Store == "" {
		return Sale{}, errors.New("sale event missing store")
	}
	if !wire.Amount.IsPositive() {
		return Sale{}, errors.New("sale amount must be positive")
	}

	sale := Sale{
		ID:         wire.ID,
		SellerName: wire.Seller,
		StoreName:  wire.Store,
		Amount:     wire.Amount,
		Goal:       wire.Goal,
		OccurredAt: wire.Timestamp,
	}
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.OccurredAt.IsZero() {
		sale.OccurredAt = time.Now().UTC()
	}
	return sale, nil
}

// DecodeGoalAchieved parses a transport payload into a canonical GoalAchieved.
func DecodeGoalAchieved(payload []byte) (GoalAchieved, error) {
	var wire goalWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return GoalAchieved{}, fmt.Errorf("decode goal event: %w", err)
	}

	if wire.StoreName == "" {
		return GoalAchieved{}, errors.New("goal event missing storeName")
	}

	goal := GoalAchieved{
		CelebrationID: wire.CelebrationID,
		StoreName:     wire.StoreName,
		Achieved:      wire.Achieved,
		Target:        wire.Target,
		Percentage:    wire.Percentage,
		OccurredAt:    wire.Timestamp,
	}
	if goal.CelebrationID == "" {
		goal.CelebrationID = uuid.NewString()
	}
	if goal.OccurredAt.IsZero() {
		goal.OccurredAt = time.Now().UTC()
	}
	if goal.Percentage.IsZero() && !goal.Target.IsZero() {
		goal.Percentage = goal.Achieved.Div(goal.Target).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return goal, nil
}
